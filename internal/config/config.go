package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PostgresConfig points at the letterhead token table.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Table    string `yaml:"table"`

	// RefreshInterval controls how often the token cache is reloaded.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Config is the full application configuration.
type Config struct {
	Server struct {
		Host          string `yaml:"host"`
		Port          string `yaml:"port"`
		Prefork       bool   `yaml:"prefork"`
		BodyLimitMB   int    `yaml:"body_limit_mb"`
		PublicBaseURL string `yaml:"public_base_url"`
		PublicDir     string `yaml:"public_dir"`
	} `yaml:"server"`

	Limits struct {
		MaxHTMLBytes   int `yaml:"max_html_bytes"`
		MaxUploadBytes int `yaml:"max_upload_bytes"`
		MaxPDFBytes    int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		Enabled  bool          `yaml:"enabled"`
		Max      int           `yaml:"max"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"rate_limiter"`

	PDF struct {
		Engine            string               `yaml:"engine"`
		DefaultPaper      string               `yaml:"default_paper"`
		PaperSizes        map[string]PaperSize `yaml:"paper_sizes"`
		NavigationTimeout time.Duration        `yaml:"navigation_timeout"`
		PrintTimeout      time.Duration        `yaml:"print_timeout"`
		SettleDelay       time.Duration        `yaml:"settle_delay"`
		NavigationRetries int                  `yaml:"navigation_retries"`
		ChromePath        string               `yaml:"chrome_path"`
		ChromeNoSandbox   bool                 `yaml:"chrome_no_sandbox"`
		MaxPages          int                  `yaml:"max_pages"`
		UserDataDir       string               `yaml:"user_data_dir"`
		TempDir           string               `yaml:"temp_dir"`
	} `yaml:"pdf"`

	Output struct {
		Dir                 string        `yaml:"dir"`
		DeleteAfterDownload time.Duration `yaml:"delete_after_download"`
	} `yaml:"output"`

	Letterhead struct {
		AssetDir string `yaml:"asset_dir"`
		Auth     struct {
			Mode      string         `yaml:"mode"`
			Secret    string         `yaml:"secret"`
			JWTSecret string         `yaml:"jwt_secret"`
			JWTIssuer string         `yaml:"jwt_issuer"`
			Postgres  PostgresConfig `yaml:"postgres"`
		} `yaml:"auth"`
	} `yaml:"letterhead"`

	Auth struct {
		APIKeys []string `yaml:"api_keys"`
	} `yaml:"auth"`
}

// Engine names accepted in pdf.engine.
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"
)

// Letterhead authorizer modes accepted in letterhead.auth.mode.
const (
	AuthModeSecret   = "secret"
	AuthModePostgres = "postgres"
	AuthModeJWT      = "jwt"
)

// DefaultPaperSizes mirrors the formats the converter advertises.
func DefaultPaperSizes() map[string]PaperSize {
	return map[string]PaperSize{
		"A4":      {Width: 8.27, Height: 11.69},
		"A3":      {Width: 11.69, Height: 16.54},
		"LETTER":  {Width: 8.5, Height: 11},
		"LEGAL":   {Width: 8.5, Height: 14},
		"TABLOID": {Width: 11, Height: 17},
	}
}

// Load reads the config from CONFIG_PATH, falling back to ./config.yaml.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the YAML file at path. It panics on any error,
// configuration problems are fatal at startup.
func LoadFrom(path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		panic("config: " + err.Error())
	}
	return cfg
}

// Default returns a configuration usable without a file (CLI, tests).
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":5000"
	cfg.Server.BodyLimitMB = 50
	cfg.Server.PublicDir = "public"
	cfg.Limits.MaxHTMLBytes = 50 << 20
	cfg.Limits.MaxUploadBytes = 50 << 20
	cfg.Limits.MaxPDFBytes = 200 << 20
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7
	cfg.Cache.PDFCacheTTL = 10 * time.Minute
	cfg.RateLimiter.Max = 60
	cfg.RateLimiter.Interval = time.Minute
	cfg.PDF.Engine = EngineChromedp
	cfg.PDF.DefaultPaper = "A4"
	cfg.PDF.PaperSizes = DefaultPaperSizes()
	cfg.PDF.NavigationTimeout = 30 * time.Second
	cfg.PDF.PrintTimeout = 60 * time.Second
	cfg.PDF.SettleDelay = time.Second
	cfg.PDF.NavigationRetries = 2
	cfg.PDF.ChromeNoSandbox = true
	cfg.PDF.MaxPages = 4
	cfg.Output.Dir = "outputs"
	cfg.Output.DeleteAfterDownload = 5 * time.Second
	cfg.Letterhead.AssetDir = "public"
	cfg.Letterhead.Auth.Mode = AuthModeSecret
	cfg.Letterhead.Auth.Secret = "102005"
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	// Common container env var for the browser binary.
	if cfg.PDF.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.PDF.ChromePath = v
		}
	}
	if v := os.Getenv("LETTERHEAD_SECRET"); v != "" {
		cfg.Letterhead.Auth.Secret = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.PDF.Engine {
	case EngineChromedp, EngineRod:
	default:
		return fmt.Errorf("pdf.engine must be %q or %q, got %q", EngineChromedp, EngineRod, c.PDF.Engine)
	}
	if len(c.PDF.PaperSizes) == 0 {
		return fmt.Errorf("pdf.paper_sizes is empty")
	}
	if _, ok := c.PDF.PaperSizes[strings.ToUpper(c.PDF.DefaultPaper)]; !ok {
		return fmt.Errorf("pdf.default_paper %q is not in pdf.paper_sizes", c.PDF.DefaultPaper)
	}
	for name, p := range c.PDF.PaperSizes {
		if name != strings.ToUpper(name) {
			return fmt.Errorf("pdf.paper_sizes key %q must be upper case", name)
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("pdf.paper_sizes %s has non-positive dimensions", name)
		}
	}
	if c.PDF.NavigationTimeout <= 0 || c.PDF.PrintTimeout <= 0 {
		return fmt.Errorf("pdf timeouts must be positive")
	}
	if c.PDF.NavigationRetries < 0 {
		return fmt.Errorf("pdf.navigation_retries must be >= 0")
	}
	if c.PDF.MaxPages <= 0 {
		return fmt.Errorf("pdf.max_pages must be > 0")
	}
	if c.Limits.MaxHTMLBytes <= 0 || c.Limits.MaxUploadBytes <= 0 || c.Limits.MaxPDFBytes <= 0 {
		return fmt.Errorf("limits must be positive")
	}
	if c.RateLimiter.Enabled && (c.RateLimiter.Max <= 0 || c.RateLimiter.Interval <= 0) {
		return fmt.Errorf("rate_limiter needs positive max and interval when enabled")
	}
	if c.Cache.PDFCacheEnabled && c.Cache.RedisHost == "" {
		return fmt.Errorf("cache.redis_host is required when pdf_cache_enabled")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is empty")
	}
	switch c.Letterhead.Auth.Mode {
	case AuthModeSecret:
		if c.Letterhead.Auth.Secret == "" {
			return fmt.Errorf("letterhead.auth.secret is required for mode %q", AuthModeSecret)
		}
	case AuthModeJWT:
		if c.Letterhead.Auth.JWTSecret == "" {
			return fmt.Errorf("letterhead.auth.jwt_secret is required for mode %q", AuthModeJWT)
		}
	case AuthModePostgres:
		if c.Letterhead.Auth.Postgres.Host == "" {
			return fmt.Errorf("letterhead.auth.postgres.host is required for mode %q", AuthModePostgres)
		}
	default:
		return fmt.Errorf("letterhead.auth.mode %q is not supported", c.Letterhead.Auth.Mode)
	}
	return nil
}
