package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hydrate/internal/match"
	"github.com/roach88/hydrate/internal/review"
)

// isolate runs the test in an empty directory with the hydrate variables
// unset.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{EnvDatabase, EnvConfig, EnvApprovalPolicy} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, match.DefaultConfig(), cfg.MatchConfig())

	rc, err := cfg.ReviewConfig()
	require.NoError(t, err)
	assert.Equal(t, review.DefaultConfig(), rc)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	writeFile(t, path, `
[database]
path = "/data/hydrate.db"

[match]
tolerance = 0.05
allow_exact = true

[review]
approval_policy = "multiple"
workers = 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/hydrate.db", cfg.Database.Path)
	assert.Equal(t, 0.05, cfg.Match.Tolerance)
	assert.True(t, cfg.Match.AllowExact)
	// Untouched keys keep their defaults.
	assert.Equal(t, 250.0, cfg.Match.TemperatureScale)

	rc, err := cfg.ReviewConfig()
	require.NoError(t, err)
	assert.Equal(t, review.PolicyMultiple, rc.ApprovalPolicy)
	assert.Equal(t, 2, rc.Workers)
	assert.Equal(t, 200, rc.MaxPerPage)
}

func TestLoad_DefaultPathPickedUp(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, DefaultPath), "[database]\npath = \"local.db\"\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local.db", cfg.Database.Path)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "absent.toml"))
	assert.Error(t, err)

	t.Setenv(EnvConfig, filepath.Join(dir, "absent.toml"))
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "hydrate.toml")
	writeFile(t, path, "[database]\npath = \"file.db\"\n[review]\napproval_policy = \"single\"\n")

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvDatabase, "env.db")
	t.Setenv(EnvApprovalPolicy, "multiple")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, "multiple", cfg.Review.ApprovalPolicy)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.Unsetenv(EnvDatabase))
	writeFile(t, filepath.Join(dir, ".env"), EnvDatabase+"=dotenv.db\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv.db", cfg.Database.Path)
}

func TestLoad_Invalid(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name string
		toml string
	}{
		{"bad syntax", "[match\n"},
		{"negative tolerance", "[match]\ntolerance = -1\n"},
		{"unknown policy", "[review]\napproval_policy = \"all\"\n"},
		{"zero workers", "[review]\nworkers = 0\n"},
		{"soft above hard", "[import]\nsum_soft_tolerance = 0.5\n"},
		{"empty db path", "[database]\npath = \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.toml")
			writeFile(t, path, tt.toml)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_InvalidPolicyFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvApprovalPolicy, "everything")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approval_policy")
}
