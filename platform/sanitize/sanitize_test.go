package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "production key", Label("  <b>production</b>\t\nkey ", 0))
	assert.Equal(t, "abc", Label("abcdef", 3))
	assert.Equal(t, "héllo", Label("héllo wörld", 5))
	assert.Equal(t, "", Label("<script></script>", 10))
}
