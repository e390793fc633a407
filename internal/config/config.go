// internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds every tunable of the service. File values are overridden by
// environment variables (dots become underscores, e.g. REAPER_INTERVAL_SEC).
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	QuestionSource struct {
		URL        string `mapstructure:"url"`
		TimeoutSec int    `mapstructure:"timeout_sec"`
	} `mapstructure:"question_source"`

	Reaper struct {
		IntervalSec    int `mapstructure:"interval_sec"`
		IdleTimeoutSec int `mapstructure:"idle_timeout_sec"`
	} `mapstructure:"reaper"`

	OrphanSweepSec int `mapstructure:"orphan_sweep_sec"`

	Redis struct {
		Addr  string `mapstructure:"addr"`
		Queue string `mapstructure:"queue"`
	} `mapstructure:"redis"`

	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`
}

// Default returns the configuration the service runs with out of the box.
func Default() Config {
	var c Config
	c.ListenAddr = ":8080"
	c.QuestionSource.URL = "http://localhost:5000"
	c.QuestionSource.TimeoutSec = 15
	c.Reaper.IntervalSec = 60
	c.Reaper.IdleTimeoutSec = 3600
	c.OrphanSweepSec = 30
	c.Redis.Queue = "quizzatron_games"
	return c
}

// Load merges the defaults already present in config with a YAML file and
// the environment; config must be a pointer.
func Load(file string, config any) error {
	v := viper.New()
	m := make(map[string]any)

	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}
	return nil
}
