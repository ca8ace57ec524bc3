package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"upload_monitor/internal/domain"
)

// Run modes. Auto picks weekly on Mondays and daily otherwise.
const (
	ModeAuto   = "auto"
	ModeDaily  = "daily"
	ModeWeekly = "weekly"
)

type Config struct {
	Accounts []AccountConfig `yaml:"accounts"`
	Keywords []string        `yaml:"keywords"`
	Fetch    FetchConfig     `yaml:"fetch"`
	Ledger   LedgerConfig    `yaml:"ledger"`
	Digest   DigestConfig    `yaml:"digest"`
	Notify   NotifyConfig    `yaml:"notify"`
	Mode     string          `yaml:"mode"`
	Timezone string          `yaml:"timezone"`
	LogLevel string          `yaml:"log_level"`
}

type AccountConfig struct {
	Platform  string `yaml:"platform"`
	UID       int64  `yaml:"uid"`
	ChannelID string `yaml:"channel_id"`
	Name      string `yaml:"name"`
	NoFilter  bool   `yaml:"no_filter"`
}

type FetchConfig struct {
	Concurrency int           `yaml:"concurrency"`
	PageSize    int           `yaml:"page_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	Cooldown    time.Duration `yaml:"cooldown"`
	Timeout     time.Duration `yaml:"timeout"`
	BilibiliURL string        `yaml:"bilibili_url"`
	YouTubeURL  string        `yaml:"youtube_url"`
}

type LedgerConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

type DigestConfig struct {
	DailyTitle   string        `yaml:"daily_title"`
	WeeklyTitle  string        `yaml:"weekly_title"`
	DailyWindow  time.Duration `yaml:"daily_window"`
	WeeklyWindow time.Duration `yaml:"weekly_window"`
}

type NotifyConfig struct {
	FeishuWebhook string        `yaml:"feishu_webhook"`
	SMTP          SMTPConfig    `yaml:"smtp"`
	AMQP          AMQPConfig    `yaml:"amqp"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Enabled reports whether enough SMTP settings are present to attempt a send.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != "" && len(s.To) > 0
}

type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = 3
	}
	if c.Fetch.PageSize == 0 {
		c.Fetch.PageSize = 10
	}
	if c.Fetch.MaxAttempts == 0 {
		c.Fetch.MaxAttempts = 3
	}
	if c.Fetch.BackoffBase == 0 {
		c.Fetch.BackoffBase = 3 * time.Second
	}
	if c.Fetch.Cooldown == 0 {
		c.Fetch.Cooldown = time.Second
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 15 * time.Second
	}
	if c.Fetch.BilibiliURL == "" {
		c.Fetch.BilibiliURL = "https://api.bilibili.com/x/space/arc/search"
	}
	if c.Fetch.YouTubeURL == "" {
		c.Fetch.YouTubeURL = "https://www.youtube.com/feeds/videos.xml"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "history.json"
	}
	if c.Ledger.Retention == 0 {
		c.Ledger.Retention = 14 * 24 * time.Hour
	}
	if c.Digest.DailyTitle == "" {
		c.Digest.DailyTitle = "AIGC Upload Digest"
	}
	if c.Digest.WeeklyTitle == "" {
		c.Digest.WeeklyTitle = "AIGC Upload Digest (Past 7 Days)"
	}
	if c.Digest.DailyWindow == 0 {
		// 26h rather than 24h so uploads near the previous run's boundary
		// are not missed.
		c.Digest.DailyWindow = 26 * time.Hour
	}
	if c.Digest.WeeklyWindow == 0 {
		c.Digest.WeeklyWindow = 7 * 24 * time.Hour
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if c.Notify.AMQP.Exchange == "" {
		c.Notify.AMQP.Exchange = "upload_monitor"
	}
	if c.Notify.AMQP.RoutingKey == "" {
		c.Notify.AMQP.RoutingKey = "digests"
	}
	if c.Notify.AMQP.QueueName == "" {
		c.Notify.AMQP.QueueName = "upload_digests"
	}
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Shanghai"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}
	for i, a := range c.Accounts {
		switch domain.Platform(a.Platform) {
		case domain.PlatformBilibili:
			if a.UID == 0 {
				return fmt.Errorf("account %d: bilibili account needs a uid", i)
			}
		case domain.PlatformYouTube:
			if a.ChannelID == "" {
				return fmt.Errorf("account %d: youtube account needs a channel_id", i)
			}
		default:
			return fmt.Errorf("account %d: unknown platform %q", i, a.Platform)
		}
	}
	switch c.Mode {
	case ModeAuto, ModeDaily, ModeWeekly:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// AccountList converts the roster into domain accounts.
func (c *Config) AccountList() []domain.Account {
	accounts := make([]domain.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, domain.Account{
			Platform:  domain.Platform(a.Platform),
			UID:       a.UID,
			ChannelID: a.ChannelID,
			Name:      a.Name,
			NoFilter:  a.NoFilter,
		})
	}
	return accounts
}

// Location returns the configured timezone, falling back to a fixed
// UTC+8 zone when the tzdata lookup fails.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("UTC+8", 8*3600)
	}
	return loc
}

// ResolveRun derives the configuration for a single invocation. In auto
// mode Mondays produce the weekly digest covering the past seven days,
// every other day the daily digest. The returned Now is fixed for the
// whole run.
func (c *Config) ResolveRun(now time.Time) domain.RunConfig {
	mode := c.Mode
	if mode == ModeAuto {
		if now.In(c.Location()).Weekday() == time.Monday {
			mode = ModeWeekly
		} else {
			mode = ModeDaily
		}
	}

	run := domain.RunConfig{Now: now.Unix()}
	if mode == ModeWeekly {
		run.Title = c.Digest.WeeklyTitle
		run.Window = int64(c.Digest.WeeklyWindow.Seconds())
	} else {
		run.Title = c.Digest.DailyTitle
		run.Window = int64(c.Digest.DailyWindow.Seconds())
	}
	return run
}
