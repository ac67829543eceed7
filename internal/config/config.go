// internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig gates one scraper plugin: rate limiting and circuit breaker
// parameters, plus whatever the plugin needs to build its search request.
type SourceConfig struct {
	Enabled            bool    `yaml:"enabled" json:"enabled"`
	SearchURL          string  `yaml:"search_url,omitempty" json:"search_url,omitempty"`
	MinIntervalSeconds float64 `yaml:"min_interval_seconds" json:"min_interval_seconds"`
	JitterSeconds      float64 `yaml:"jitter_seconds" json:"jitter_seconds"`
	FailureThreshold   int     `yaml:"failure_threshold" json:"failure_threshold"`
	BackoffBaseSeconds int     `yaml:"backoff_base_seconds" json:"backoff_base_seconds"`
	BackoffMultiplier  float64 `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	BlockMultiplier    float64 `yaml:"block_multiplier" json:"block_multiplier"`
	BackoffMaxSeconds  int     `yaml:"backoff_max_seconds" json:"backoff_max_seconds"`
}

type AxisWeights struct {
	Price     int `yaml:"price" json:"price"`
	Mileage   int `yaml:"mileage" json:"mileage"`
	Keywords  int `yaml:"keywords" json:"keywords"`
	Freshness int `yaml:"freshness" json:"freshness"`
	Bonus     int `yaml:"bonus" json:"bonus"`
	Margin    int `yaml:"margin" json:"margin"`
}

type Threshold struct {
	Level string `yaml:"level" json:"level"`
	Min   int    `yaml:"min" json:"min"`
}

// Target is one vehicle the hunt is configured for. All scoring tables hang
// off the target so the scorer stays a pure function of (listing, config).
type Target struct {
	ID            string   `yaml:"id" json:"id"`
	Make          string   `yaml:"make" json:"make"`
	ModelPatterns []string `yaml:"model_patterns" json:"model_patterns"`
	Fuel          string   `yaml:"fuel,omitempty" json:"fuel,omitempty"`
	Exclusions    []string `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`

	PriceMin    int `yaml:"price_min" json:"price_min"`
	PriceMax    int `yaml:"price_max" json:"price_max"`
	MarketPrice int `yaml:"market_price,omitempty" json:"market_price,omitempty"`
	ResaleMin   int `yaml:"resale_min,omitempty" json:"resale_min,omitempty"`
	ResaleMax   int `yaml:"resale_max,omitempty" json:"resale_max,omitempty"`

	MileageMin      int `yaml:"mileage_min" json:"mileage_min"`
	MileageMax      int `yaml:"mileage_max" json:"mileage_max"`
	MileageIdealMin int `yaml:"mileage_ideal_min,omitempty" json:"mileage_ideal_min,omitempty"`
	MileageIdealMax int `yaml:"mileage_ideal_max,omitempty" json:"mileage_ideal_max,omitempty"`

	Weights         AxisWeights `yaml:"weights" json:"weights"`
	AlertThresholds []Threshold `yaml:"alert_thresholds" json:"alert_thresholds"`
}

// Keyword is one configured signal; any of Terms matching counts once.
type Keyword struct {
	ID         string   `yaml:"id" json:"id"`
	Terms      []string `yaml:"terms" json:"terms"`
	Weight     int      `yaml:"weight" json:"weight"`
	RepairCost int      `yaml:"repair_cost,omitempty" json:"repair_cost,omitempty"`
	Severity   string   `yaml:"severity,omitempty" json:"severity,omitempty"`
}

type Keywords struct {
	Opportunity []Keyword `yaml:"opportunity" json:"opportunity"`
	Risk        []Keyword `yaml:"risk" json:"risk"`
	Exclusion   []string  `yaml:"exclusion" json:"exclusion"`
}

type Departments struct {
	Tier1 []string `yaml:"tier1" json:"tier1"`
	Tier2 []string `yaml:"tier2" json:"tier2"`
	Tier3 []string `yaml:"tier3" json:"tier3"`
}

type DiscordConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// KeyringAccount is looked up in the OS keychain; WebhookURL is the
	// plaintext fallback for headless deployments.
	KeyringAccount string `yaml:"keyring_account,omitempty" json:"keyring_account,omitempty"`
	WebhookURL     string `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`
	Username       string `yaml:"username,omitempty" json:"username,omitempty"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Subject string `yaml:"subject,omitempty" json:"subject,omitempty"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Scan struct {
		IntervalSeconds        int  `yaml:"interval_seconds" json:"interval_seconds"`
		JitterSeconds          int  `yaml:"jitter_seconds" json:"jitter_seconds"`
		Concurrency            int  `yaml:"concurrency" json:"concurrency"`
		CycleTimeoutSeconds    int  `yaml:"cycle_timeout_seconds" json:"cycle_timeout_seconds"`
		DetailThreshold        int  `yaml:"detail_threshold" json:"detail_threshold"`
		MaxDetailPerCycle      int  `yaml:"max_detail_per_cycle" json:"max_detail_per_cycle"`
		SuppressNearDuplicates bool `yaml:"suppress_near_duplicates" json:"suppress_near_duplicates"`
		RenotifyOnPriceDrop    bool `yaml:"renotify_on_price_drop" json:"renotify_on_price_drop"`
	} `yaml:"scan" json:"scan"`

	Sources map[string]SourceConfig `yaml:"sources" json:"sources"`

	Targets []Target `yaml:"targets" json:"targets"`

	Keywords Keywords `yaml:"keywords" json:"keywords"`

	Departments Departments `yaml:"departments" json:"departments"`

	Notify struct {
		// Routes maps alert tiers to channel names; tiers without a route
		// are never notified.
		Routes  map[string][]string `yaml:"routes" json:"routes"`
		Discord DiscordConfig       `yaml:"discord" json:"discord"`
		NATS    NATSConfig          `yaml:"nats" json:"nats"`
	} `yaml:"notify" json:"notify"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
