// Package geocode resolves job service addresses through Nominatim.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hcp_job_processor/internal/jobs"
	"hcp_job_processor/platform/logger"

	"golang.org/x/time/rate"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// ErrNoResult is returned when Nominatim finds nothing for an address.
var ErrNoResult = errors.New("geocode: no result")

type Service struct {
	client       *http.Client
	baseURL      string
	countryCodes string
	limiter      *rate.Limiter
	log          *logger.Logger
}

// NewService creates a geocoder. Nominatim allows one request per second.
func NewService(baseURL, countryCodes string, log *logger.Logger) *Service {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	return &Service{
		client:       &http.Client{Timeout: 5 * time.Second},
		baseURL:      baseURL,
		countryCodes: countryCodes,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		log:          log,
	}
}

// Geocode implements jobs.Geocoder.
func (s *Service) Geocode(ctx context.Context, address jobs.Address) (*jobs.Location, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", "1")
	if street := strings.TrimSpace(address.Street); street != "" {
		params.Add("street", street)
	}
	if address.City != "" {
		params.Add("city", address.City)
	}
	if address.State != "" {
		params.Add("state", address.State)
	}
	if address.Zip != "" {
		params.Add("postalcode", address.Zip)
	}
	if s.countryCodes != "" {
		params.Add("countrycodes", s.countryCodes)
	}

	reqURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "HCPJobProcessor/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("nominatim request failed", "error", err)
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("nominatim upstream error", "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		s.log.Error("failed to decode nominatim payload", "error", err)
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoResult
	}

	return toLocation(results[0])
}

func toLocation(raw nominatimResponse) (*jobs.Location, error) {
	lat, err := strconv.ParseFloat(raw.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude %q: %w", raw.Lat, err)
	}
	lon, err := strconv.ParseFloat(raw.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude %q: %w", raw.Lon, err)
	}
	return &jobs.Location{Lat: lat, Lon: lon, Label: buildLabel(raw)}, nil
}

func pickCity(address nominatimAddress) string {
	if address.City != "" {
		return address.City
	}
	if address.Town != "" {
		return address.Town
	}
	if address.Village != "" {
		return address.Village
	}
	if address.Municipality != "" {
		return address.Municipality
	}
	return address.Hamlet
}

func buildLabel(raw nominatimResponse) string {
	street := strings.TrimSpace(strings.Join([]string{raw.Address.HouseNumber, raw.Address.Road}, " "))
	city := pickCity(raw.Address)
	if street == "" || city == "" {
		return raw.DisplayName
	}

	parts := []string{street + ","}
	parts = append(parts, city)
	if raw.Address.State != "" {
		parts[len(parts)-1] += ","
		parts = append(parts, raw.Address.State)
	}
	if raw.Address.Postcode != "" {
		parts = append(parts, raw.Address.Postcode)
	}
	return strings.Join(parts, " ")
}

type nominatimAddress struct {
	Road         string `json:"road"`
	HouseNumber  string `json:"house_number"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	Hamlet       string `json:"hamlet"`
	State        string `json:"state"`
}

// nominatimResponse mirrors the relevant parts of the OSM search payload.
type nominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Address     nominatimAddress `json:"address"`
}
