package authcore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with wire-friendly types: durations are
// strings in time.ParseDuration syntax and the secret is plain text.
// Absent fields keep their DefaultConfig values.
type fileConfig struct {
	Password struct {
		Iterations    *int    `yaml:"iterations"`
		SaltLength    *int    `yaml:"salt_length"`
		KeyLength     *int    `yaml:"key_length"`
		MaxConcurrent *int64  `yaml:"max_concurrent"`
		MinScore      *int    `yaml:"min_score"`
		HistoryDepth  *int    `yaml:"history_depth"`
		MaxAge        *string `yaml:"max_age"`
	} `yaml:"password"`
	Token struct {
		Secret              *string  `yaml:"secret"`
		Issuer              *string  `yaml:"issuer"`
		AccessTTL           *string  `yaml:"access_ttl"`
		RefreshTTL          *string  `yaml:"refresh_ttl"`
		RememberMeTTL       *string  `yaml:"remember_me_ttl"`
		RotateAfterFraction *float64 `yaml:"rotate_after_fraction"`
		BindIP              *bool    `yaml:"bind_ip"`
	} `yaml:"token"`
	Session struct {
		Timeout     *string `yaml:"timeout"`
		MaxPerUser  *int    `yaml:"max_per_user"`
		EvictOldest *bool   `yaml:"evict_oldest"`
	} `yaml:"session"`
	Lockout struct {
		MaxAttempts  *int    `yaml:"max_attempts"`
		Window       *string `yaml:"window"`
		LockDuration *string `yaml:"lock_duration"`
	} `yaml:"lockout"`
	IPBlock struct {
		MaxAttempts   *int    `yaml:"max_attempts"`
		Window        *string `yaml:"window"`
		BlockDuration *string `yaml:"block_duration"`
	} `yaml:"ip_block"`
	Throttle struct {
		RequestsPerSecond *float64 `yaml:"requests_per_second"`
		Burst             *int     `yaml:"burst"`
	} `yaml:"throttle"`
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize *int  `yaml:"buffer_size"`
		DropIfFull *bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	MetricsEnabled *bool   `yaml:"metrics_enabled"`
	SweepInterval  *string `yaml:"sweep_interval"`
}

// LoadConfigFile reads a YAML file and overlays it onto DefaultConfig.
// The result is not validated; Build does that.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig overlays YAML data onto DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := DefaultConfig()

	setInt(&cfg.Password.Iterations, fc.Password.Iterations)
	setInt(&cfg.Password.SaltLength, fc.Password.SaltLength)
	setInt(&cfg.Password.KeyLength, fc.Password.KeyLength)
	if fc.Password.MaxConcurrent != nil {
		cfg.Password.MaxConcurrent = *fc.Password.MaxConcurrent
	}
	setInt(&cfg.Password.MinScore, fc.Password.MinScore)
	setInt(&cfg.Password.HistoryDepth, fc.Password.HistoryDepth)
	if err := setDuration(&cfg.Password.MaxAge, fc.Password.MaxAge); err != nil {
		return Config{}, err
	}

	if fc.Token.Secret != nil {
		cfg.Token.Secret = []byte(*fc.Token.Secret)
	}
	if fc.Token.Issuer != nil {
		cfg.Token.Issuer = *fc.Token.Issuer
	}
	if err := setDuration(&cfg.Token.AccessTTL, fc.Token.AccessTTL); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.Token.RefreshTTL, fc.Token.RefreshTTL); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.Token.RememberMeTTL, fc.Token.RememberMeTTL); err != nil {
		return Config{}, err
	}
	if fc.Token.RotateAfterFraction != nil {
		cfg.Token.RotateAfterFraction = *fc.Token.RotateAfterFraction
	}
	if fc.Token.BindIP != nil {
		cfg.Token.BindIP = *fc.Token.BindIP
	}

	if err := setDuration(&cfg.Session.Timeout, fc.Session.Timeout); err != nil {
		return Config{}, err
	}
	setInt(&cfg.Session.MaxPerUser, fc.Session.MaxPerUser)
	if fc.Session.EvictOldest != nil {
		cfg.Session.EvictOldest = *fc.Session.EvictOldest
	}

	setInt(&cfg.Lockout.MaxAttempts, fc.Lockout.MaxAttempts)
	if err := setDuration(&cfg.Lockout.Window, fc.Lockout.Window); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.Lockout.LockDuration, fc.Lockout.LockDuration); err != nil {
		return Config{}, err
	}

	setInt(&cfg.IPBlock.MaxAttempts, fc.IPBlock.MaxAttempts)
	if err := setDuration(&cfg.IPBlock.Window, fc.IPBlock.Window); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.IPBlock.BlockDuration, fc.IPBlock.BlockDuration); err != nil {
		return Config{}, err
	}

	if fc.Throttle.RequestsPerSecond != nil {
		cfg.Throttle.RequestsPerSecond = *fc.Throttle.RequestsPerSecond
	}
	setInt(&cfg.Throttle.Burst, fc.Throttle.Burst)

	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	setInt(&cfg.Audit.BufferSize, fc.Audit.BufferSize)
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}

	if fc.MetricsEnabled != nil {
		cfg.MetricsEnabled = *fc.MetricsEnabled
	}
	if err := setDuration(&cfg.SweepInterval, fc.SweepInterval); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", *src, err)
	}
	*dst = d
	return nil
}
