package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// OperationsConfig carries tunables operators may change without a restart.
type OperationsConfig struct {
	Currency              string   `mapstructure:"currency" json:"currency"`
	DefaultOnlineProvider string   `mapstructure:"defaultOnlineProvider" json:"default_online_provider"`
	OTPAttempts           int      `mapstructure:"otpAttempts" json:"otp_attempts"`
	OrderCodeAttempts     int      `mapstructure:"orderCodeAttempts" json:"order_code_attempts"`
	RescheduleWarnAfter   int      `mapstructure:"rescheduleWarnAfter" json:"reschedule_warn_after"`
	MediaMaxBytes         int64    `mapstructure:"mediaMaxBytes" json:"media_max_bytes"`
	MediaContentTypes     []string `mapstructure:"mediaContentTypes" json:"media_content_types"`
	PublicOrderRate       RateRule `mapstructure:"publicOrderRate" json:"public_order_rate"`
	FollowUpReason        string   `mapstructure:"followUpReason" json:"follow_up_reason"`
}

type RateRule struct {
	Capacity     int64 `mapstructure:"capacity" json:"capacity"`
	RefillPerMin int64 `mapstructure:"refillPerMin" json:"refill_per_min"`
}

func DefaultOperationsConfig() OperationsConfig {
	return OperationsConfig{
		Currency:              "INR",
		DefaultOnlineProvider: "razorpay",
		OTPAttempts:           5,
		OrderCodeAttempts:     5,
		RescheduleWarnAfter:   3,
		MediaMaxBytes:         10 << 20,
		MediaContentTypes:     []string{"image/jpeg", "image/png", "image/webp", "video/mp4", "application/pdf"},
		PublicOrderRate:       RateRule{Capacity: 5, RefillPerMin: 1},
		FollowUpReason:        "Follow-up visit required",
	}
}

type OperationsConfigHolder struct {
	current atomic.Value // holds OperationsConfig
}

// NewStaticOperationsConfigHolder returns a holder that never reloads.
func NewStaticOperationsConfigHolder(cfg OperationsConfig) *OperationsConfigHolder {
	holder := &OperationsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewOperationsConfigHolder(log *zap.Logger) (*OperationsConfigHolder, error) {
	log = log.Named("config.operations")
	v := viper.New()

	v.SetConfigName("operations")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/fieldops")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIELDOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultOperationsConfig()
	v.SetDefault("operations.currency", defaults.Currency)
	v.SetDefault("operations.defaultOnlineProvider", defaults.DefaultOnlineProvider)
	v.SetDefault("operations.otpAttempts", defaults.OTPAttempts)
	v.SetDefault("operations.orderCodeAttempts", defaults.OrderCodeAttempts)
	v.SetDefault("operations.rescheduleWarnAfter", defaults.RescheduleWarnAfter)
	v.SetDefault("operations.mediaMaxBytes", defaults.MediaMaxBytes)
	v.SetDefault("operations.mediaContentTypes", defaults.MediaContentTypes)
	v.SetDefault("operations.publicOrderRate.capacity", defaults.PublicOrderRate.Capacity)
	v.SetDefault("operations.publicOrderRate.refillPerMin", defaults.PublicOrderRate.RefillPerMin)
	v.SetDefault("operations.followUpReason", defaults.FollowUpReason)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg OperationsConfig
	if err := v.UnmarshalKey("operations", &cfg); err != nil {
		return nil, err
	}
	if err := validateOperationsConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticOperationsConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated OperationsConfig
		if err := v.UnmarshalKey("operations", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateOperationsConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *OperationsConfigHolder) Get() OperationsConfig {
	return h.current.Load().(OperationsConfig)
}

func validateOperationsConfig(cfg OperationsConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("operations.currency cannot be empty")
	}
	if cfg.OTPAttempts <= 0 {
		return errors.New("operations.otpAttempts must be positive")
	}
	if cfg.OrderCodeAttempts <= 0 {
		return errors.New("operations.orderCodeAttempts must be positive")
	}
	if cfg.PublicOrderRate.Capacity <= 0 || cfg.PublicOrderRate.RefillPerMin <= 0 {
		return errors.New("operations.publicOrderRate must be positive")
	}
	return nil
}
