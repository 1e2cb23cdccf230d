package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ModelRate is the per-token price of one AI model.
type ModelRate struct {
	PromptRate     float64 `mapstructure:"prompt_rate"`
	CompletionRate float64 `mapstructure:"completion_rate"`
}

// PricingConfig is the rate table used to derive usage costs.
type PricingConfig struct {
	Models       map[string]ModelRate `mapstructure:"models"`
	StoragePerMB float64              `mapstructure:"storage_per_mb"`
	EmailRate    float64              `mapstructure:"email_rate"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Models: map[string]ModelRate{
			"gpt-4o":            {PromptRate: 0.0000025, CompletionRate: 0.00001},
			"gpt-4o-mini":       {PromptRate: 0.00000015, CompletionRate: 0.0000006},
			"claude-3-5-sonnet": {PromptRate: 0.000003, CompletionRate: 0.000015},
			"claude-3-5-haiku":  {PromptRate: 0.0000008, CompletionRate: 0.000004},
		},
		StoragePerMB: 0.00002,
		EmailRate:    0.001,
	}
}

var defaultPricingPaths = []string{
	"/var/lib/proppass/config",
	"/etc/proppass",
	".",
}

type PricingHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewPricingHolder loads pricing.yml from the default search paths.
func NewPricingHolder() (*PricingHolder, error) {
	return LoadPricingHolder(defaultPricingPaths...)
}

// LoadPricingHolder reads pricing.yml from the first path that has one and
// watches it for changes. Built-in defaults apply when no file exists.
func LoadPricingHolder(paths ...string) (*PricingHolder, error) {
	v := viper.New()
	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("PROPPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PricingHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(DefaultPricingConfig())
		return holder, nil
	}

	cfg, err := decodePricing(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePricing(v)
		if err != nil {
			zap.L().Warn("pricing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("pricing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticPricingHolder returns a holder pinned to cfg.
func NewStaticPricingHolder(cfg PricingConfig) *PricingHolder {
	holder := &PricingHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func decodePricing(v *viper.Viper) (PricingConfig, error) {
	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return PricingConfig{}, err
	}
	normalized := make(map[string]ModelRate, len(cfg.Models))
	for name, rate := range cfg.Models {
		normalized[strings.ToLower(strings.TrimSpace(name))] = rate
	}
	cfg.Models = normalized
	if err := validatePricing(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

func validatePricing(cfg PricingConfig) error {
	if len(cfg.Models) == 0 {
		return errors.New("pricing.models cannot be empty")
	}
	for name, rate := range cfg.Models {
		if name == "" {
			return errors.New("pricing.models contains an empty model name")
		}
		if rate.PromptRate < 0 || rate.CompletionRate < 0 {
			return fmt.Errorf("pricing.models.%s has a negative rate", name)
		}
	}
	if cfg.StoragePerMB < 0 {
		return errors.New("pricing.storage_per_mb cannot be negative")
	}
	if cfg.EmailRate < 0 {
		return errors.New("pricing.email_rate cannot be negative")
	}
	return nil
}
