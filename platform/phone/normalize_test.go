package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFormatsUSNumbers(t *testing.T) {
	n := NewNormalizer("")

	assert.Equal(t, "+14155552671", n.Normalize("(415) 555-2671"))
	assert.Equal(t, "+14155552671", n.Normalize("+1 415 555 2671"))
}

func TestNormalizeKeepsUnparseableInput(t *testing.T) {
	n := NewNormalizer("us")

	assert.Equal(t, "", n.Normalize("   "))
	assert.Equal(t, "not-a-number", n.Normalize(" not-a-number "))
}

func TestNormalizeE164UsesDefaultRegion(t *testing.T) {
	assert.Equal(t, "+14155552671", NormalizeE164("415-555-2671"))
}
