package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	GoogleApiKey  string
	BraveApiKey   string
	MistralApiKey string
	// SearchProvider selects the web search backend: brave or arxiv.
	SearchProvider string

	ReasoningModel string
	FastModel      string

	Port           string
	DatabaseURL    string
	AllowedOrigins []string

	MaxIterations        int
	QuickMaxIterations   int
	NumResults           int
	MinFindings          int
	MinIterations        int
	MaxPlansPerIteration int

	InputPricePerMTok  float64
	OutputPricePerMTok float64

	HTTPTimeout time.Duration
	// SearchRateLimit is the Brave request rate per second. Zero disables it.
	SearchRateLimit float64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search_provider", "brave")
	v.SetDefault("reasoning_model", "gemini-2.0-flash")
	v.SetDefault("fast_model", "gemini-2.0-flash")
	v.SetDefault("port", "8000")
	v.SetDefault("allowed_origins", "http://localhost:3000")
	v.SetDefault("max_iterations", 5)
	v.SetDefault("quick_max_iterations", 10)
	v.SetDefault("num_results", 10)
	v.SetDefault("min_findings", 5)
	v.SetDefault("min_iterations", 3)
	v.SetDefault("max_plans_per_iteration", 2)
	// gemini-2.0-flash list prices
	v.SetDefault("input_price_per_mtok", 0.10)
	v.SetDefault("output_price_per_mtok", 0.40)
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("search_rate_limit", 1.0)
}

// Load reads defaults, an optional search-agent.yaml and the environment, in
// increasing order of precedence. An empty cfgFile searches the working
// directory and ~/.config/search-agent.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("search-agent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "search-agent"))
		}
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		GoogleApiKey:         v.GetString("google_api_key"),
		BraveApiKey:          v.GetString("brave_api_key"),
		MistralApiKey:        v.GetString("mistral_api_key"),
		SearchProvider:       strings.ToLower(v.GetString("search_provider")),
		ReasoningModel:       v.GetString("reasoning_model"),
		FastModel:            v.GetString("fast_model"),
		Port:                 v.GetString("port"),
		DatabaseURL:          v.GetString("database_url"),
		AllowedOrigins:       splitList(v.GetString("allowed_origins")),
		MaxIterations:        v.GetInt("max_iterations"),
		QuickMaxIterations:   v.GetInt("quick_max_iterations"),
		NumResults:           v.GetInt("num_results"),
		MinFindings:          v.GetInt("min_findings"),
		MinIterations:        v.GetInt("min_iterations"),
		MaxPlansPerIteration: v.GetInt("max_plans_per_iteration"),
		InputPricePerMTok:    v.GetFloat64("input_price_per_mtok"),
		OutputPricePerMTok:   v.GetFloat64("output_price_per_mtok"),
		HTTPTimeout:          v.GetDuration("http_timeout"),
		SearchRateLimit:      v.GetFloat64("search_rate_limit"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SearchProvider {
	case "brave", "arxiv":
	default:
		return fmt.Errorf("unknown search provider %q (want brave or arxiv)", c.SearchProvider)
	}
	if c.MaxIterations <= 0 || c.QuickMaxIterations <= 0 {
		return errors.New("iteration limits must be positive")
	}
	if c.NumResults <= 0 || c.MaxPlansPerIteration <= 0 {
		return errors.New("num_results and max_plans_per_iteration must be positive")
	}
	if c.SearchRateLimit < 0 {
		return errors.New("search_rate_limit must not be negative")
	}
	return nil
}

// splitList accepts a comma separated value.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
