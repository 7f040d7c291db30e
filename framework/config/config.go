package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/km-arc/go-actions/framework/validation"
)

// Config is the central typed configuration struct.
type Config struct {
	App    AppConfig
	Log    LogConfig
	Bridge BridgeConfig
}

type AppConfig struct {
	Name  string `env:"APP_NAME"  envDefault:"GoActions"`
	Env   string `env:"APP_ENV"   envDefault:"local"` // local | production | testing
	Debug bool   `env:"APP_DEBUG" envDefault:"true"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"` // console | json
}

// BridgeConfig configures both sides of the action bridge.
type BridgeConfig struct {
	Transport string        `env:"BRIDGE_TRANSPORT" envDefault:"http"` // http | grpc
	HTTPAddr  string        `env:"BRIDGE_HTTP_ADDR" envDefault:":8000"`
	GRPCAddr  string        `env:"BRIDGE_GRPC_ADDR" envDefault:":9000"`
	Endpoint  string        `env:"BRIDGE_ENDPOINT"  envDefault:"/_actions"`
	URL       string        `env:"BRIDGE_URL"       envDefault:"http://localhost:8000/_actions"`
	Target    string        `env:"BRIDGE_TARGET"    envDefault:"localhost:9000"`
	Secret    string        `env:"BRIDGE_SECRET"`
	Timeout   time.Duration `env:"BRIDGE_TIMEOUT"   envDefault:"10s"` // 0 = no bound
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }

// IsLocal reports whether APP_ENV is local.
func (c *Config) IsLocal() bool { return c.App.Env == "local" }

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg, err := config.Load()
func Load(envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// A missing .env is fine; a malformed one is not.
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot type-check.
func (c *Config) Validate() error {
	v := validation.Make(map[string]string{
		"APP_ENV":          c.App.Env,
		"LOG_LEVEL":        c.Log.Level,
		"LOG_FORMAT":       c.Log.Format,
		"BRIDGE_TRANSPORT": c.Bridge.Transport,
		"BRIDGE_ENDPOINT":  c.Bridge.Endpoint,
		"BRIDGE_URL":       c.Bridge.URL,
		"BRIDGE_SECRET":    c.Bridge.Secret,
		"BRIDGE_TIMEOUT":   strconv.FormatInt(c.Bridge.Timeout.Milliseconds(), 10),
	}, validation.Rules{
		"APP_ENV":          "required|in:local,production,testing",
		"LOG_LEVEL":        "required|in:debug,info,warn,error",
		"LOG_FORMAT":       "required|in:console,json",
		"BRIDGE_TRANSPORT": "required|in:http,grpc",
		"BRIDGE_ENDPOINT":  "required|starts_with:/",
		"BRIDGE_URL":       "required|url",
		"BRIDGE_SECRET":    "nullable|min:16",
		"BRIDGE_TIMEOUT":   "integer|gte:0",
	})
	if v.Fails() {
		return fmt.Errorf("config: %w", v.Err())
	}
	return nil
}
