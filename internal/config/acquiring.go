package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AcquiringConfig is the file-backed part of the configuration that may change
// while the process runs.
type AcquiringConfig struct {
	// StatusCatalog overrides the bank orderStatus code to local status mapping.
	StatusCatalog map[string]string `mapstructure:"statusCatalog"`
}

// StatusOverrides returns the parsed status catalog overrides.
func (c AcquiringConfig) StatusOverrides() map[int]string {
	out := make(map[int]string, len(c.StatusCatalog))
	for code, status := range c.StatusCatalog {
		parsed, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil {
			continue
		}
		out[parsed] = strings.ToUpper(strings.TrimSpace(status))
	}
	return out
}

type AcquiringConfigHolder struct {
	current atomic.Value // holds AcquiringConfig
}

func NewAcquiringConfigHolder() (*AcquiringConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("acquiring")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/acquiring")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ACQUIRING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	var cfg AcquiringConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validateAcquiringConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticAcquiringConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AcquiringConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[acquiring-config] reload failed: %v", err)
			return
		}
		if err := validateAcquiringConfig(updated); err != nil {
			log.Printf("[acquiring-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[acquiring-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticAcquiringConfigHolder wraps a fixed configuration.
func NewStaticAcquiringConfigHolder(cfg AcquiringConfig) *AcquiringConfigHolder {
	holder := &AcquiringConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *AcquiringConfigHolder) Get() AcquiringConfig {
	if h == nil {
		return AcquiringConfig{}
	}
	return h.current.Load().(AcquiringConfig)
}

func validateAcquiringConfig(cfg AcquiringConfig) error {
	for code, status := range cfg.StatusCatalog {
		parsed, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil || parsed < 0 {
			return fmt.Errorf("statusCatalog: invalid bank status code %q", code)
		}
		if strings.TrimSpace(status) == "" {
			return fmt.Errorf("statusCatalog: empty status for code %q", code)
		}
	}
	return nil
}
