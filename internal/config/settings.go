package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/poller"
	"github.com/alexisbeaulieu97/genflow/internal/provider"
	"github.com/alexisbeaulieu97/genflow/internal/store"
	apperrors "github.com/alexisbeaulieu97/genflow/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. GENFLOW_SERVER_ADDR.
const EnvPrefix = "GENFLOW"

// Settings is the service configuration.
type Settings struct {
	Server     ServerSettings         `mapstructure:"server"`
	Provider   ProviderSettings       `mapstructure:"provider"`
	LLM        LLMSettings            `mapstructure:"llm"`
	Store      store.Config           `mapstructure:"store"`
	Poll       map[string]PollSetting `mapstructure:"poll" validate:"dive,keys,tool_kind,endkeys"`
	Retry      RetrySettings          `mapstructure:"retry"`
	Storyboard StoryboardSettings     `mapstructure:"storyboard"`
	Log        LogSettings            `mapstructure:"log"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// ProviderSettings configures the job API client.
type ProviderSettings struct {
	BaseURL        string            `mapstructure:"base_url" validate:"required,url"`
	APIToken       string            `mapstructure:"api_token"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds" validate:"gte=0"`
	Routes         map[string]string `mapstructure:"routes" validate:"dive,keys,tool_kind,endkeys"`
}

// LLMSettings configures the language model behind text steps. An empty
// token leaves text steps unavailable.
type LLMSettings struct {
	Token   string `mapstructure:"token"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// PollSetting overrides the poll policy of one tool kind.
type PollSetting struct {
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0"`
}

// RetrySettings enables re-running a failed step's dispatch and poll.
type RetrySettings struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gte=0"`
	Jitter      time.Duration `mapstructure:"jitter" validate:"gte=0"`
}

// StoryboardSettings configures variant generation.
type StoryboardSettings struct {
	Concurrency int    `mapstructure:"concurrency" validate:"gte=1"`
	Tool        string `mapstructure:"tool" validate:"tool_kind"`
	Model       string `mapstructure:"model"`
}

// LogSettings selects the logger backend. An empty backend picks zerolog for
// json output and charmbracelet/log otherwise.
type LogSettings struct {
	Level   string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format  string `mapstructure:"format" validate:"oneof=text json logfmt"`
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=charm zerolog"`
}

// UseZerolog reports whether the zerolog backend applies.
func (l LogSettings) UseZerolog() bool {
	if l.Backend != "" {
		return l.Backend == "zerolog"
	}
	return l.Format == "json"
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Provider: ProviderSettings{BaseURL: "http://localhost:9000/v1", TimeoutSeconds: 60},
		LLM:      LLMSettings{Model: "gpt-4o-mini"},
		Store:    store.Config{Driver: store.DriverMemory},
		Retry:    RetrySettings{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Jitter: 250 * time.Millisecond},
		Storyboard: StoryboardSettings{
			Concurrency: 4,
			Tool:        string(workflow.ToolImage),
			Model:       "default",
		},
		Log: LogSettings{Level: "info", Format: "text"},
	}
}

// SetDefaults registers DefaultSettings on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.api_token", d.Provider.APIToken)
	v.SetDefault("provider.timeout_seconds", d.Provider.TimeoutSeconds)

	v.SetDefault("llm.token", d.LLM.Token)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", filepath.Join(DataDir(), "genflow.db"))

	v.SetDefault("retry.enabled", d.Retry.Enabled)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.jitter", d.Retry.Jitter)

	v.SetDefault("storyboard.concurrency", d.Storyboard.Concurrency)
	v.SetDefault("storyboard.tool", d.Storyboard.Tool)
	v.SetDefault("storyboard.model", d.Storyboard.Model)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.backend", d.Log.Backend)
}

// NewViper returns a viper instance reading configFile (or genflow.yaml in
// the working and config directories) with GENFLOW_* environment overrides.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("genflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads the config file (a missing default file is fine),
// decodes and validates the settings.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperrors.NewParseError(v.ConfigFileUsed(), extractLine(err), err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, apperrors.NewParseError(v.ConfigFileUsed(), 0, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings against their struct rules.
func (s *Settings) Validate() error {
	if err := validatorInstance().Struct(s); err != nil {
		return convertValidationError(err)
	}
	return nil
}

// PollPolicies returns the poll overrides keyed by tool kind.
func (s *Settings) PollPolicies() map[workflow.ToolKind]poller.Policy {
	out := make(map[workflow.ToolKind]poller.Policy, len(s.Poll))
	for kind, p := range s.Poll {
		out[workflow.ToolKind(kind)] = poller.Policy{Interval: p.Interval, MaxAttempts: p.MaxAttempts}
	}
	return out
}

// ProviderConfig builds the job API client configuration.
func (s *Settings) ProviderConfig() provider.Config {
	routes := make(map[workflow.ToolKind]string, len(s.Provider.Routes))
	for kind, path := range s.Provider.Routes {
		routes[workflow.ToolKind(kind)] = path
	}
	return provider.Config{
		BaseURL:        s.Provider.BaseURL,
		APIToken:       s.Provider.APIToken,
		TimeoutSeconds: s.Provider.TimeoutSeconds,
		Routes:         routes,
	}
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "genflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".genflow"
	}
	return filepath.Join(home, ".config", "genflow")
}

// DataDir returns the per-user data directory holding the SQLite store.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "genflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".genflow"
	}
	return filepath.Join(home, ".local", "share", "genflow")
}
