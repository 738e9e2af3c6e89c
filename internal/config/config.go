package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`

	Acquire   AcquireConfig   `yaml:"acquire"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Geo       GeoConfig       `yaml:"geo"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Policy    PolicyConfig    `yaml:"policy"`
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Watch     WatchConfig     `yaml:"watch"`
}

// AcquireConfig controls the page text acquisition chain
type AcquireConfig struct {
	MinHTTPChars   int           `yaml:"min_http_chars"`
	MinRenderChars int           `yaml:"min_render_chars"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	RenderTimeout  time.Duration `yaml:"render_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	Engine         string        `yaml:"engine"` // chromedp | playwright
	ChromePath     string        `yaml:"chrome_path"`
	Headless       bool          `yaml:"headless"`
	// Per host politeness between lightweight fetches
	MinDelay   time.Duration `yaml:"min_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	UserAgents []string      `yaml:"user_agents"`
}

// OpenAIConfig for the model based rent extractor
type OpenAIConfig struct {
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	Model               string  `yaml:"model"`
	Enabled             bool    `yaml:"enabled"`
	Temperature         float32 `yaml:"temperature"`
	MaxTokens           int     `yaml:"max_tokens"`
	MaxPageChars        int     `yaml:"max_page_chars"`
	MaxDescriptionChars int     `yaml:"max_description_chars"`
}

// GeoConfig for postal code resolution
type GeoConfig struct {
	ZippopotamURL  string  `yaml:"zippopotam_url"`
	NominatimURL   string  `yaml:"nominatim_url"`
	UserAgent      string  `yaml:"user_agent"`
	AcceptLanguage string  `yaml:"accept_language"`
	ReverseZoom    int     `yaml:"reverse_zoom"`
	NominatimRate  float64 `yaml:"nominatim_rate"` // requests per second
	// SuburbTables maps a city name to a postal code -> suburb table
	SuburbTables map[string]map[string]string `yaml:"suburb_tables"`
}

// BenchmarkConfig for market rent benchmark providers
type BenchmarkConfig struct {
	PrimaryBaseURL string `yaml:"primary_base_url"`
	// Generic provider URL templates, {slug} is replaced with the city slug
	Providers []string `yaml:"providers"`
}

// PolicyConfig holds plausibility bounds
type PolicyConfig struct {
	MonthlyRentMin   float64 `yaml:"monthly_rent_min"`
	MonthlyRentMax   float64 `yaml:"monthly_rent_max"`
	AnnualRentMin    float64 `yaml:"annual_rent_min"`
	PortalRentMin    float64 `yaml:"portal_rent_min"`
	PortalRentMax    float64 `yaml:"portal_rent_max"`
	ExplicitRangeMin float64 `yaml:"explicit_range_min"`
	ExplicitRangeMax float64 `yaml:"explicit_range_max"`
	ScannedValueMin  float64 `yaml:"scanned_value_min"`
	ScannedValueMax  float64 `yaml:"scanned_value_max"`
	SingleValueBand  float64 `yaml:"single_value_band"`
	ContextWindow    int     `yaml:"context_window"`
}

// CacheConfig for the optional result cache
type CacheConfig struct {
	Type          string        `yaml:"type"` // none | memory | sqlite | redis
	RedisURL      string        `yaml:"redis_url"`
	MarketRentTTL time.Duration `yaml:"market_rent_ttl"`
	AnalysisTTL   time.Duration `yaml:"analysis_ttl"`
}

// HTTPConfig for the JSON API
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// TelegramConfig for Telegram bot settings
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Enabled  bool   `yaml:"enabled"`
}

// WatchConfig for periodic benchmark refresh
type WatchConfig struct {
	Schedule    string   `yaml:"schedule"`
	PostalCodes []string `yaml:"postal_codes"`
	URLs        []string `yaml:"urls"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "data/mietcheck.db",
		LogLevel:     "info",
		Acquire: AcquireConfig{
			MinHTTPChars:   200,
			MinRenderChars: 100,
			HTTPTimeout:    30 * time.Second,
			RenderTimeout:  30 * time.Second,
			SettleDelay:    1500 * time.Millisecond,
			Engine:         "chromedp",
			Headless:       true,
			MinDelay:       500 * time.Millisecond,
			MaxDelay:       1500 * time.Millisecond,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
			},
		},
		OpenAI: OpenAIConfig{
			Model:               "gpt-4o-mini",
			Enabled:             true,
			Temperature:         0,
			MaxTokens:           300,
			MaxPageChars:        12000,
			MaxDescriptionChars: 1500,
		},
		Geo: GeoConfig{
			ZippopotamURL:  "https://api.zippopotam.us",
			NominatimURL:   "https://nominatim.openstreetmap.org",
			UserAgent:      "ImmoAI/1.0",
			AcceptLanguage: "de-DE,de;q=0.9",
			ReverseZoom:    16,
			NominatimRate:  1,
			SuburbTables: map[string]map[string]string{
				"Bremen": BremenSuburbs(),
			},
		},
		Benchmark: BenchmarkConfig{
			PrimaryBaseURL: "https://www.immobilienscout24.de/immobilienpreise/",
			Providers: []string{
				"https://www.immowelt.de/immobilienpreise/{slug}/mietspiegel",
				"https://www.immowelt.de/immobilienpreise/{slug}-mietspiegel",
				"https://www.wohnungsboerse.net/mietspiegel-{slug}",
				"https://www.meinestadt.de/{slug}/immobilien/mietspiegel",
				"https://miet-check.de/mietspiegel/{slug}",
				"https://mietspiegel.com/{slug}",
			},
		},
		Policy: DefaultPolicy(),
		Cache: CacheConfig{
			Type:          "none",
			MarketRentTTL: 24 * time.Hour,
			AnalysisTTL:   time.Hour,
		},
		HTTP: HTTPConfig{
			Addr: ":3001",
		},
		Watch: WatchConfig{
			Schedule: "0 6 * * *",
		},
	}
}

// DefaultPolicy returns the plausibility bounds tuned for German residential listings
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		MonthlyRentMin:   100,
		MonthlyRentMax:   20000,
		AnnualRentMin:    1200,
		PortalRentMin:    100,
		PortalRentMax:    10000,
		ExplicitRangeMin: 3,
		ExplicitRangeMax: 40,
		ScannedValueMin:  3,
		ScannedValueMax:  25,
		SingleValueBand:  0.15,
		ContextWindow:    80,
	}
}

// BremenSuburbs is the postal code to suburb table used when reverse geocoding
// leaves the suburb empty
func BremenSuburbs() map[string]string {
	return map[string]string{
		"28195": "Mitte", "28197": "Woltmershausen", "28199": "Neustadt",
		"28201": "Huckelriede", "28203": "Ostertor", "28205": "Hulsberg",
		"28207": "Hastedt", "28209": "Barkhof", "28211": "Gete",
		"28213": "Riensberg", "28215": "Findorff", "28217": "Walle",
		"28219": "Osterfeuerberg", "28237": "Gröpelingen", "28239": "Oslebshausen",
		"28259": "Huchting", "28277": "Kattenturm", "28279": "Habenhausen",
		"28307": "Mahndorf", "28309": "Sebaldsbrück", "28325": "Osterholz",
		"28327": "Blockdiek", "28329": "Vahr", "28355": "Oberneuland",
		"28357": "Borgfeld", "28359": "Horn-Lehe", "28717": "Lesum",
		"28719": "Burg-Grambke", "28755": "Vegesack", "28757": "St. Magnus",
		"28759": "Grohn", "28777": "Blumenthal", "28779": "Lüssum-Bockhorn",
	}
}

// Load reads configuration from YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Read YAML file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Override with environment variables
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if chatID, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = chatID
		}
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.Acquire.ChromePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	return cfg, nil
}

// ModelEnabled reports whether the language model extractor can run
func (c *Config) ModelEnabled() bool {
	return c.OpenAI.Enabled && c.OpenAI.APIKey != ""
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.Acquire.Engine {
	case "chromedp", "playwright":
	default:
		return fmt.Errorf("unknown renderer engine %q", c.Acquire.Engine)
	}

	switch c.Cache.Type {
	case "", "none", "memory", "sqlite":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache type redis requires redis_url")
		}
	default:
		return fmt.Errorf("unknown cache type %q", c.Cache.Type)
	}

	p := c.Policy
	if p.MonthlyRentMin > p.MonthlyRentMax {
		return fmt.Errorf("policy: monthly_rent_min %.0f > monthly_rent_max %.0f", p.MonthlyRentMin, p.MonthlyRentMax)
	}
	if p.PortalRentMin > p.PortalRentMax {
		return fmt.Errorf("policy: portal_rent_min %.0f > portal_rent_max %.0f", p.PortalRentMin, p.PortalRentMax)
	}
	if p.ExplicitRangeMin > p.ExplicitRangeMax {
		return fmt.Errorf("policy: explicit_range_min %.2f > explicit_range_max %.2f", p.ExplicitRangeMin, p.ExplicitRangeMax)
	}
	if p.ScannedValueMin > p.ScannedValueMax {
		return fmt.Errorf("policy: scanned_value_min %.2f > scanned_value_max %.2f", p.ScannedValueMin, p.ScannedValueMax)
	}
	if p.SingleValueBand < 0 || p.SingleValueBand >= 1 {
		return fmt.Errorf("policy: single_value_band must be in [0,1)")
	}
	if c.Acquire.MinHTTPChars < 0 || c.Acquire.MinRenderChars < 0 {
		return fmt.Errorf("acquire: thresholds must not be negative")
	}

	// Telegram is optional but needs a token when enabled
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram enabled without bot_token")
	}
	return nil
}
