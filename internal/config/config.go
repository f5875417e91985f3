package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	ListenAddr string `mapstructure:"listen_addr"`
	LogLevel   string `mapstructure:"log_level"`

	RelayURL       string        `mapstructure:"relay_url"`
	Codec          string        `mapstructure:"codec"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	WriteWait      time.Duration `mapstructure:"write_wait"`

	Username string `mapstructure:"username"`

	STUNURL            string        `mapstructure:"stun_url"`
	GlarePolicy        string        `mapstructure:"glare_policy"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`

	AudioFile string `mapstructure:"audio_file"`
	AudioLoop bool   `mapstructure:"audio_loop"`
	RecordDir string `mapstructure:"record_dir"`

	HistoryLimit        int           `mapstructure:"history_limit"`
	MessageRateLimit    int           `mapstructure:"message_rate_limit"`
	MessageRateInterval time.Duration `mapstructure:"message_rate_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("listen_addr", "127.0.0.1:8089")
	v.SetDefault("log_level", "info")

	v.SetDefault("relay_url", "ws://localhost:5000/hub")
	v.SetDefault("codec", "json")
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "10s")

	v.SetDefault("username", "Guest")

	v.SetDefault("stun_url", "stun:stun.l.google.com:19302")
	v.SetDefault("glare_policy", "lower-id")
	v.SetDefault("negotiation_timeout", "30s")

	v.SetDefault("audio_file", "")
	v.SetDefault("audio_loop", true)
	v.SetDefault("record_dir", "")

	v.SetDefault("history_limit", 200)
	v.SetDefault("message_rate_limit", 5)
	v.SetDefault("message_rate_interval", "5s")
}

// Load reads config/config.<CONFIG_ENV>.yaml, or the file named by the
// "config" key, on top of defaults. VOICE_* env vars and flags bound to v
// override file values.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	fileName := v.GetString("config")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("relay", cfg.RelayURL).
		Str("listen", cfg.ListenAddr).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.RelayURL == "" {
		errs = append(errs, errors.New("relay_url is required"))
	}
	switch c.Codec {
	case "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("codec %q: want json or msgpack", c.Codec))
	}
	switch c.GlarePolicy {
	case "lower-id", "always":
	default:
		errs = append(errs, fmt.Errorf("glare_policy %q: want lower-id or always", c.GlarePolicy))
	}
	if c.NegotiationTimeout < 0 {
		errs = append(errs, errors.New("negotiation_timeout must not be negative"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level is the configured zerolog level, info when unparsable.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
