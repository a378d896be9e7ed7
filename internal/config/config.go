package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "PREDICTIONSCOPE_CONFIG"
	kalshiAPIKeyEnv  = "KALSHI_API_KEY"
	anthropicKeyEnv  = "ANTHROPIC_API_KEY"
	githubTokenEnv   = "GITHUB_TOKEN"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Data          DataConfig         `yaml:"data"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Providers     ProviderConfig     `yaml:"providers"`
	Trends        []TrendConfig      `yaml:"trends"`
	Planner       PlannerConfig      `yaml:"planner"`
	LLM           LLMConfig          `yaml:"llm"`
	Review        ReviewConfig       `yaml:"review"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DataConfig locates the durable state on disk. Snapshot, ledger, decision
// log and the run lock all live under Dir; drafts land under ContentDir.
type DataConfig struct {
	Dir        string `yaml:"dir"`
	ContentDir string `yaml:"contentDir"`
}

// SnapshotPath is the single current snapshot file.
func (d DataConfig) SnapshotPath() string { return filepath.Join(d.Dir, "snapshot.json") }

// LedgerPath is the slug-unique content ledger file.
func (d DataConfig) LedgerPath() string { return filepath.Join(d.Dir, "ledger.json") }

// DecisionLogPath is the append-only run audit log.
func (d DataConfig) DecisionLogPath() string { return filepath.Join(d.Dir, "runs.jsonl") }

// LockPath is the run-scoped lock file guarding against concurrent runs.
func (d DataConfig) LockPath() string { return filepath.Join(d.Dir, "run.lock") }

// SchedulerConfig defines when the agent runs in serve mode.
type SchedulerConfig struct {
	Interval string         `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Every parses the run interval, defaulting to 24h.
func (s SchedulerConfig) Every() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ProviderConfig groups the market data providers.
type ProviderConfig struct {
	Kalshi     KalshiConfig     `yaml:"kalshi"`
	Polymarket PolymarketConfig `yaml:"polymarket"`
}

// KalshiConfig wires the Kalshi trade API.
type KalshiConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Limit   int    `yaml:"limit"`
}

// PolymarketConfig wires the Polymarket gamma API.
type PolymarketConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Limit   int    `yaml:"limit"`
}

// TrendConfig describes a single trend-signal source with its strategy.
type TrendConfig struct {
	Name    string            `yaml:"name"`
	Source  string            `yaml:"source"`
	URL     string            `yaml:"url"`
	Limit   int               `yaml:"limit"`
	Options map[string]string `yaml:"options"`
}

// PlannerConfig drives admission and quota allocation. MinScore and
// MoveThreshold are pointers so an explicit 0 in the file survives the
// merge with defaults, same as BucketConfig.Floor.
type PlannerConfig struct {
	MaxPerRun     int            `yaml:"maxPerRun"`
	MinScore      *float64       `yaml:"minScore"`
	MoveThreshold *float64       `yaml:"moveThreshold"`
	Buckets       []BucketConfig `yaml:"buckets"`
}

// MinScoreOrDefault returns the configured admission threshold,
// defaulting to 0.55.
func (p PlannerConfig) MinScoreOrDefault() float64 {
	if p.MinScore != nil {
		return *p.MinScore
	}
	return 0.55
}

// MoveThresholdOrDefault returns the configured mover threshold,
// defaulting to 0.10.
func (p PlannerConfig) MoveThresholdOrDefault() float64 {
	if p.MoveThreshold != nil {
		return *p.MoveThreshold
	}
	return 0.10
}

// BucketConfig is one content bucket; slice order is the allocator's
// fixed priority order. Floor is a pointer so an explicit 0 survives
// the merge with defaults.
type BucketConfig struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
	Floor  *int    `yaml:"floor"`
}

// FloorOrDefault returns the configured floor, defaulting to 1.
func (b BucketConfig) FloorOrDefault() int {
	if b.Floor != nil {
		return *b.Floor
	}
	return 1
}

// Weights returns the bucket name to weight map handed to the strategist.
func (p PlannerConfig) Weights() map[string]float64 {
	weights := make(map[string]float64, len(p.Buckets))
	for _, b := range p.Buckets {
		weights[b.Name] = b.Weight
	}
	return weights
}

// LLMConfig defines how to reach the strategist/writer model endpoint.
type LLMConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Model           string `yaml:"model"`
	APIKey          string `yaml:"apiKey"`
	ProposeTokens   int    `yaml:"proposeTokens"`
	GenerateTokens  int    `yaml:"generateTokens"`
	BrandVoice      string `yaml:"brandVoice"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
}

// ReviewConfig wires the review change-set platform.
type ReviewConfig struct {
	GitHub GitHubConfig `yaml:"github"`
}

// GitHubConfig identifies the content repository drafts are proposed to.
type GitHubConfig struct {
	APIBase    string `yaml:"apiBase"`
	Owner      string `yaml:"owner"`
	Repo       string `yaml:"repo"`
	BaseBranch string `yaml:"baseBranch"`
	Token      string `yaml:"token"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path == "" {
		if p, err := xdg.SearchConfigFile("predictionscope/config.yaml"); err == nil {
			path = p
		}
	}

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Planner.Buckets) == 0 {
		cfg.Planner.Buckets = defaultConfig().Planner.Buckets
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(kalshiAPIKeyEnv); v != "" {
		c.Providers.Kalshi.APIKey = v
	}

	if v := os.Getenv(anthropicKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.Review.GitHub.Token = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Data.Dir != "" {
		base.Data.Dir = override.Data.Dir
	}
	if override.Data.ContentDir != "" {
		base.Data.ContentDir = override.Data.ContentDir
	}

	if override.Scheduler.Interval != "" {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Providers.Kalshi.BaseURL != "" {
		base.Providers.Kalshi.BaseURL = override.Providers.Kalshi.BaseURL
	}
	if override.Providers.Kalshi.APIKey != "" {
		base.Providers.Kalshi.APIKey = override.Providers.Kalshi.APIKey
	}
	if override.Providers.Kalshi.Limit > 0 {
		base.Providers.Kalshi.Limit = override.Providers.Kalshi.Limit
	}
	if override.Providers.Polymarket.BaseURL != "" {
		base.Providers.Polymarket.BaseURL = override.Providers.Polymarket.BaseURL
	}
	if override.Providers.Polymarket.Limit > 0 {
		base.Providers.Polymarket.Limit = override.Providers.Polymarket.Limit
	}

	if len(override.Trends) > 0 {
		base.Trends = override.Trends
	}

	if override.Planner.MaxPerRun > 0 {
		base.Planner.MaxPerRun = override.Planner.MaxPerRun
	}
	if override.Planner.MinScore != nil {
		base.Planner.MinScore = override.Planner.MinScore
	}
	if override.Planner.MoveThreshold != nil {
		base.Planner.MoveThreshold = override.Planner.MoveThreshold
	}
	if len(override.Planner.Buckets) > 0 {
		base.Planner.Buckets = override.Planner.Buckets
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.ProposeTokens > 0 {
		base.LLM.ProposeTokens = override.LLM.ProposeTokens
	}
	if override.LLM.GenerateTokens > 0 {
		base.LLM.GenerateTokens = override.LLM.GenerateTokens
	}
	if override.LLM.BrandVoice != "" {
		base.LLM.BrandVoice = override.LLM.BrandVoice
	}
	if override.LLM.TimeoutSeconds > 0 {
		base.LLM.TimeoutSeconds = override.LLM.TimeoutSeconds
	}

	if override.Review.GitHub.APIBase != "" {
		base.Review.GitHub.APIBase = override.Review.GitHub.APIBase
	}
	if override.Review.GitHub.Owner != "" {
		base.Review.GitHub.Owner = override.Review.GitHub.Owner
	}
	if override.Review.GitHub.Repo != "" {
		base.Review.GitHub.Repo = override.Review.GitHub.Repo
	}
	if override.Review.GitHub.BaseBranch != "" {
		base.Review.GitHub.BaseBranch = override.Review.GitHub.BaseBranch
	}
	if override.Review.GitHub.Token != "" {
		base.Review.GitHub.Token = override.Review.GitHub.Token
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Data: DataConfig{
			Dir:        "data",
			ContentDir: "content",
		},
		Scheduler: SchedulerConfig{Interval: "24h", Timezone: defaultTimezone, location: tz},
		Providers: ProviderConfig{
			Kalshi:     KalshiConfig{BaseURL: "https://api.elections.kalshi.com/trade-api/v2", Limit: 200},
			Polymarket: PolymarketConfig{BaseURL: "https://gamma-api.polymarket.com", Limit: 200},
		},
		Trends: []TrendConfig{
			{Name: "google-news-economy", Source: "rss", URL: "https://news.google.com/rss/search?q=prediction+markets", Limit: 20},
		},
		Planner: PlannerConfig{
			MaxPerRun: 3,
			Buckets: []BucketConfig{
				{Name: "learn", Weight: 0.50},
				{Name: "markets", Weight: 0.35},
				{Name: "best", Weight: 0.15},
			},
		},
		LLM: LLMConfig{
			Endpoint:       "https://api.anthropic.com/v1/messages",
			Model:          "claude-sonnet-4-20250514",
			ProposeTokens:  4096,
			GenerateTokens: 8192,
			TimeoutSeconds: 120,
		},
		Review: ReviewConfig{
			GitHub: GitHubConfig{
				APIBase:    "https://api.github.com",
				BaseBranch: "main",
			},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
	}
}
