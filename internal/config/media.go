package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MediaConfig tunes media validation. Reloaded from media.yml without restart.
type MediaConfig struct {
	MaxVideoSeconds   float64  `mapstructure:"maxVideoSeconds"`
	FFProbePath       string   `mapstructure:"ffprobePath"`
	AllowedImageTypes []string `mapstructure:"allowedImageTypes"`
	MaxUploadBytes    int64    `mapstructure:"maxUploadBytes"`
}

func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		MaxVideoSeconds:   30,
		FFProbePath:       "",
		AllowedImageTypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
		MaxUploadBytes:    50 << 20,
	}
}

// AllowsImage reports whether the content type is an accepted image type.
func (c MediaConfig) AllowsImage(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	for _, allowed := range c.AllowedImageTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), contentType) {
			return true
		}
	}
	return false
}

type MediaConfigHolder struct {
	current atomic.Value // holds MediaConfig
}

// NewStaticMediaConfigHolder returns a holder that never reloads.
func NewStaticMediaConfigHolder(cfg MediaConfig) *MediaConfigHolder {
	holder := &MediaConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewMediaConfigHolder() (*MediaConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("media")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMediaConfig()
	v.SetDefault("media.maxVideoSeconds", defaults.MaxVideoSeconds)
	v.SetDefault("media.ffprobePath", defaults.FFProbePath)
	v.SetDefault("media.allowedImageTypes", defaults.AllowedImageTypes)
	v.SetDefault("media.maxUploadBytes", defaults.MaxUploadBytes)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg MediaConfig
	if err := v.UnmarshalKey("media", &cfg); err != nil {
		return nil, err
	}
	if err := validateMediaConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticMediaConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MediaConfig
		if err := v.UnmarshalKey("media", &updated); err != nil {
			log.Printf("[media-config] reload failed: %v", err)
			return
		}
		if err := validateMediaConfig(updated); err != nil {
			log.Printf("[media-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[media-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MediaConfigHolder) Get() MediaConfig {
	if h == nil {
		return DefaultMediaConfig()
	}
	return h.current.Load().(MediaConfig)
}

func validateMediaConfig(cfg MediaConfig) error {
	if cfg.MaxVideoSeconds <= 0 {
		return errors.New("media.maxVideoSeconds must be positive")
	}
	if len(cfg.AllowedImageTypes) == 0 {
		return errors.New("media.allowedImageTypes cannot be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("media.maxUploadBytes must be positive")
	}
	return nil
}
