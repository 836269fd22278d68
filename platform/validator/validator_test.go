package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID string `validate:"notblank"`
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	v := New()

	err := v.Struct(sample{ID: "   "})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"sample.ID": "notblank"}, Describe(err))

	require.NoError(t, v.Struct(sample{ID: "job_1"}))
}

func TestDescribeIgnoresForeignErrors(t *testing.T) {
	assert.Nil(t, Describe(assert.AnError))
}
