package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Services whose upstream quotas are shared between brands.
const (
	ServiceSMS      = "sms"
	ServiceWebhook  = "webhook"
	ServiceGeocode  = "geocode"
	ServiceLateAPI  = "lateAPI"
	ServiceHeygen   = "heygen"
	ServiceSubmagic = "submagic"
)

// BrandLimits maps brand -> service -> requests allowed per window.
type BrandLimits struct {
	Brands   map[string]map[string]int `mapstructure:"brands"`
	Fallback int                       `mapstructure:"fallback"`
}

// DefaultBrandLimits is used when no brand file is configured.
func DefaultBrandLimits() BrandLimits {
	return BrandLimits{
		Brands: map[string]map[string]int{
			"ownerfi": {
				ServiceSMS:      500,
				ServiceWebhook:  1000,
				ServiceGeocode:  200,
				ServiceLateAPI:  100,
				ServiceHeygen:   50,
				ServiceSubmagic: 50,
			},
		},
		Fallback: 100,
	}
}

// Limit returns the per-window limit for a brand/service pair.
func (b BrandLimits) Limit(brand, service string) int {
	if svc, ok := b.Brands[strings.ToLower(brand)]; ok {
		if n, ok := svc[service]; ok {
			return n
		}
		// viper lower-cases keys read from files
		if n, ok := svc[strings.ToLower(service)]; ok {
			return n
		}
	}
	return b.Fallback
}

// LoadBrandLimits reads brand limits from path (yaml, toml or json by
// extension). An empty path or missing file yields the defaults. Env vars
// prefixed LEADMARKET_ override the fallback (LEADMARKET_FALLBACK).
func LoadBrandLimits(path string) (BrandLimits, error) {
	defaults := DefaultBrandLimits()

	v := viper.New()
	v.SetDefault("fallback", defaults.Fallback)
	v.SetDefault("brands", defaults.Brands)
	v.SetEnvPrefix("LEADMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return BrandLimits{}, fmt.Errorf("read brand config %s: %w", path, err)
			}
		}
	}

	var limits BrandLimits
	if err := v.Unmarshal(&limits); err != nil {
		return BrandLimits{}, fmt.Errorf("unmarshal brand config: %w", err)
	}
	if limits.Brands == nil {
		limits.Brands = defaults.Brands
	}
	return limits, nil
}
