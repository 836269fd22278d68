package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"hcp_job_processor/internal/jobs"
	"hcp_job_processor/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeParsesFirstResult(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{
			"street":       r.URL.Query().Get("street"),
			"city":         r.URL.Query().Get("city"),
			"postalcode":   r.URL.Query().Get("postalcode"),
			"countrycodes": r.URL.Query().Get("countrycodes"),
		}
		_, _ = w.Write([]byte(`[{"display_name":"x","lat":"39.7817","lon":"-89.6501",
			"address":{"road":"Main St","house_number":"1","town":"Springfield","state":"Illinois","postcode":"62701"}}]`))
	}))
	defer srv.Close()

	svc := NewService(srv.URL, "us", logger.Nop())
	loc, err := svc.Geocode(context.Background(), jobs.Address{Street: "1 Main St", City: "Springfield", Zip: "62701"})
	require.NoError(t, err)

	assert.InDelta(t, 39.7817, loc.Lat, 1e-9)
	assert.InDelta(t, -89.6501, loc.Lon, 1e-9)
	assert.Equal(t, "1 Main St, Springfield, Illinois 62701", loc.Label)
	assert.Equal(t, map[string]string{"street": "1 Main St", "city": "Springfield", "postalcode": "62701", "countrycodes": "us"}, query)
}

func TestGeocodeNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewService(srv.URL, "", logger.Nop()).Geocode(context.Background(), jobs.Address{City: "Nowhere"})
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGeocodeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewService(srv.URL, "", logger.Nop()).Geocode(context.Background(), jobs.Address{City: "Springfield"})
	assert.Error(t, err)
}

func TestBuildLabelFallsBackToDisplayName(t *testing.T) {
	assert.Equal(t, "Somewhere", buildLabel(nominatimResponse{DisplayName: "Somewhere"}))
}
