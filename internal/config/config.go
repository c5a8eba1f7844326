package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rzbill/localai/pkg/checkout"
	"github.com/rzbill/localai/pkg/lifecycle"
	"github.com/rzbill/localai/pkg/log"
	"github.com/rzbill/localai/pkg/probes"
	"github.com/rzbill/localai/pkg/provision"
	"github.com/rzbill/localai/pkg/runner/docker"
	"github.com/rzbill/localai/pkg/teardown"
	"github.com/spf13/viper"
)

// DefaultFileName is looked up in the work dir when no --config is given.
const DefaultFileName = "localai.yaml"

// EnvPrefix prefixes environment overrides, e.g. LOCALAI_LOG_LEVEL.
const EnvPrefix = "LOCALAI"

type Env struct {
	File             string                 `yaml:"file" mapstructure:"file"`
	Template         string                 `yaml:"template" mapstructure:"template"`
	TemplateRequired bool                   `yaml:"template_required" mapstructure:"template_required"`
	Mirrors          []string               `yaml:"mirrors" mapstructure:"mirrors"`
	Exclude          string                 `yaml:"exclude" mapstructure:"exclude"`
	Fields           []provision.FieldSpec  `yaml:"fields" mapstructure:"fields"`
	Token            provision.TokenOptions `yaml:"token" mapstructure:"token"`
}

type Compose struct {
	Files  []string `yaml:"files" mapstructure:"files"`
	Binary string   `yaml:"binary,omitempty" mapstructure:"binary"`
}

type Core struct {
	Files     []string      `yaml:"files" mapstructure:"files"`
	Services  []string      `yaml:"services,omitempty" mapstructure:"services"`
	Readiness probes.Config `yaml:"readiness" mapstructure:"readiness"`
}

type SearXNG struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Base     string `yaml:"base" mapstructure:"base"`
	Settings string `yaml:"settings" mapstructure:"settings"`
}

type Tunnel struct {
	// TokenKey is the snapshot key holding the tunnel token.
	TokenKey string   `yaml:"token_key" mapstructure:"token_key"`
	Profile  string   `yaml:"profile" mapstructure:"profile"`
	Services []string `yaml:"services" mapstructure:"services"`
}

type Journal struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

type Config struct {
	Project  string                `yaml:"project" mapstructure:"project"`
	WorkDir  string                `yaml:"work_dir" mapstructure:"work_dir"`
	Profile  string                `yaml:"profile" mapstructure:"profile"`
	Env      Env                   `yaml:"env" mapstructure:"env"`
	Checkout checkout.Options      `yaml:"checkout" mapstructure:"checkout"`
	Compose  Compose               `yaml:"compose" mapstructure:"compose"`
	Core     Core                  `yaml:"core" mapstructure:"core"`
	Catalog  []lifecycle.Component `yaml:"catalog" mapstructure:"catalog"`
	SearXNG  SearXNG               `yaml:"searxng" mapstructure:"searxng"`
	Tunnel   Tunnel                `yaml:"tunnel" mapstructure:"tunnel"`
	Teardown teardown.Plan         `yaml:"teardown" mapstructure:"teardown"`
	Journal  Journal               `yaml:"journal" mapstructure:"journal"`
	Log      log.Config            `yaml:"log" mapstructure:"log"`
	Docker   docker.DockerConfig   `yaml:"docker" mapstructure:"docker"`
}

func Default() *Config {
	return &Config{
		Project: "localai",
		WorkDir: ".",
		Profile: lifecycle.ProfileCPU,
		Env: Env{
			File:             ".env",
			Template:         ".env.example",
			TemplateRequired: true,
			Mirrors:          []string{filepath.Join("supabase", "docker", ".env")},
			Fields:           provision.DefaultFields(),
			Token:            provision.DefaultTokenOptions(),
		},
		Checkout: checkout.DefaultOptions(),
		Compose:  Compose{Files: []string{"docker-compose.yml"}},
		Core: Core{
			Files:     []string{filepath.Join("supabase", "docker", "docker-compose.yml")},
			Readiness: probes.DefaultConfig(),
		},
		Catalog: lifecycle.DefaultCatalog(),
		SearXNG: SearXNG{
			Enabled:  true,
			Base:     filepath.Join("searxng", "settings-base.yml"),
			Settings: filepath.Join("searxng", "settings.yml"),
		},
		Tunnel: Tunnel{
			TokenKey: "CLOUDFLARED_TUNNEL_TOKEN",
			Profile:  "cloudflared",
			Services: []string{"cloudflared"},
		},
		Teardown: teardown.DefaultPlan(),
		Journal:  Journal{Enabled: true, Dir: filepath.Join(".localai", "journal")},
		Log:      *log.DefaultConfig(),
		Docker:   *docker.DefaultDockerConfig(),
	}
}

// envKeys are the scalar settings that can be overridden from the environment
// without appearing in the config file.
var envKeys = []string{
	"project",
	"work_dir",
	"profile",
	"env.file",
	"env.template",
	"compose.binary",
	"core.readiness.kind",
	"core.readiness.timeout",
	"core.readiness.address",
	"journal.enabled",
	"journal.dir",
	"log.level",
	"log.format",
	"docker.api_version",
}

// Load reads the config at path, or localai.yaml in workDir when path is
// empty. A missing default file is not an error; a missing explicit file is.
func Load(path, workDir string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if workDir == "" {
			workDir = "."
		}
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, filepath.Ext(DefaultFileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(workDir)
	}

	cfg := Default()
	if workDir != "" {
		cfg.WorkDir = workDir
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project must not be empty")
	}
	if err := lifecycle.ValidateProfile(c.Profile); err != nil {
		return err
	}
	if c.Env.File == "" {
		return fmt.Errorf("env.file must not be empty")
	}
	if err := provision.Validate(c.Env.Fields); err != nil {
		return fmt.Errorf("env.fields: %w", err)
	}
	if err := lifecycle.ValidateCatalog(c.Catalog); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if len(c.Compose.Files) == 0 {
		return fmt.Errorf("compose.files must list at least one file")
	}
	switch c.Core.Readiness.Kind {
	case probes.KindHealth, probes.KindPostgres, probes.KindTCP, probes.KindDelay:
	default:
		return fmt.Errorf("unknown readiness kind %q", c.Core.Readiness.Kind)
	}
	if c.Core.Readiness.Timeout < time.Second {
		return fmt.Errorf("core.readiness.timeout must be at least 1s")
	}
	return nil
}

// Resolve makes a work-dir relative path absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// AbsWorkDir returns the work dir as an absolute path.
func (c *Config) AbsWorkDir() (string, error) {
	abs, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve work dir: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("work dir %s: %w", abs, err)
	}
	if !st.IsDir() {
		return "", fmt.Errorf("work dir %s is not a directory", abs)
	}
	return abs, nil
}

// RedactedKeys lists the snapshot keys that must never reach the logs.
func (c *Config) RedactedKeys() []string {
	keys := provision.SecretFieldNames(c.Env.Fields)
	if c.Tunnel.TokenKey != "" {
		keys = append(keys, c.Tunnel.TokenKey)
	}
	return keys
}
