package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
)

func TestLoadSettingsDefaults(t *testing.T) {
	v := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
	// An explicit but missing file is an error; the default lookup is not.
	_, err := LoadSettings(v)
	assert.Error(t, err)

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	s, err := LoadSettings(NewViper(""))
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.Server.Addr)
	assert.Equal(t, "memory", s.Store.Driver)
	assert.Equal(t, 4, s.Storyboard.Concurrency)
	assert.False(t, s.Retry.Enabled)
}

func TestLoadSettingsFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
provider:
  base_url: https://jobs.example.com/v1
  routes:
    video: v2/videos
store:
  driver: sqlite
  path: `+filepath.Join(dir, "db.sqlite")+`
poll:
  video:
    interval: 1s
    max_attempts: 5
retry:
  enabled: true
  base_delay: 100ms
log:
  backend: zerolog
  format: json
`), 0o644))
	t.Setenv("GENFLOW_PROVIDER_API_TOKEN", "secret")

	s, err := LoadSettings(NewViper(path))
	require.NoError(t, err)

	assert.Equal(t, ":9999", s.Server.Addr)
	assert.Equal(t, "secret", s.Provider.APIToken)
	assert.Equal(t, "sqlite", s.Store.Driver)
	assert.True(t, s.Retry.Enabled)
	assert.Equal(t, 100*time.Millisecond, s.Retry.BaseDelay)
	assert.Equal(t, 3, s.Retry.MaxAttempts)

	policies := s.PollPolicies()
	assert.Equal(t, time.Second, policies[workflow.ToolVideo].Interval)
	assert.Equal(t, 5, policies[workflow.ToolVideo].MaxAttempts)

	pc := s.ProviderConfig()
	assert.Equal(t, "v2/videos", pc.Routes[workflow.ToolVideo])
	assert.Equal(t, "secret", pc.APIToken)
}

func TestSettingsValidateRejectsBadValues(t *testing.T) {
	s := DefaultSettings()
	s.Log.Format = "xml"
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.Poll = map[string]PollSetting{"hologram": {Interval: time.Second, MaxAttempts: 1}}
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.Store.Driver = "sqlite"
	s.Store.Path = ""
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	assert.NoError(t, s.Validate())
}

func TestLogSettingsBackendSelection(t *testing.T) {
	assert.False(t, LogSettings{Format: "text"}.UseZerolog())
	assert.True(t, LogSettings{Format: "json"}.UseZerolog())
	assert.False(t, LogSettings{Format: "json", Backend: "charm"}.UseZerolog())
	assert.True(t, LogSettings{Format: "text", Backend: "zerolog"}.UseZerolog())
}
