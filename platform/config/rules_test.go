package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRulesFileOverridesOnlyPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "qualified_tags:\n  - Hot Lead\n  - booked\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hot Lead", "booked"}, rules.QualifiedTags)
	assert.Equal(t, DefaultRules().ExcludedTags, rules.ExcludedTags)
	assert.Equal(t, "later qualified", rules.LaterQualifiedTag)
}

func TestLoadRulesFileRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qualified_tags: [unterminated"), 0o600))

	_, err := LoadRulesFile(path)
	require.Error(t, err)
}

func TestRulesValidateRequiresLaterQualifiedTag(t *testing.T) {
	rules := DefaultRules()
	rules.LaterQualifiedTag = "  "

	require.Error(t, rules.Validate())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesTagOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hcp")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("QUALIFIED_TAGS", "vip, booked ,")
	t.Setenv("LATER_QUALIFIED_TAG", "converted")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"vip", "booked"}, cfg.GetRules().QualifiedTags)
	assert.Equal(t, "converted", cfg.GetRules().LaterQualifiedTag)
	assert.Equal(t, "hcp-jobs", cfg.GetAsynqQueueName())
}
