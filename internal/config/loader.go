// Package config loads operational configuration for the mcbatch tools.
//
// Batch semantics (roots, patterns, partitions) live in the job manifest;
// this package only covers operational tunables an operator may want to
// adjust per site without touching manifests: log level, throttle
// intervals, and the scheduler/merge binary names. Values come from
// defaults, an optional config file, and MCBATCH_* environment variables,
// in increasing precedence.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the loaded operational configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ThrottleConfig tunes the submission controller.
type ThrottleConfig struct {
	// PollBackoff is slept after an over-ceiling or unknown occupancy
	// observation.
	PollBackoff time.Duration `mapstructure:"poll_backoff"`

	// Settle paces dispatches.
	Settle time.Duration `mapstructure:"settle"`

	// MaxAttempts bounds per-job over-ceiling observations; zero means
	// retry forever.
	MaxAttempts int `mapstructure:"max_attempts"`

	// MaxWait bounds per-job wall-clock time; zero means unbounded.
	MaxWait time.Duration `mapstructure:"max_wait"`
}

// SchedulerConfig names the external scheduler binaries.
type SchedulerConfig struct {
	SubmitBinary string `mapstructure:"submit_binary"`
	QueueBinary  string `mapstructure:"queue_binary"`
}

// Load builds the configuration from defaults, an optional config file
// (path may be empty), and MCBATCH_* environment variables. Optional
// overrides maps are applied last, in order.
func Load(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetDefault("logging.level", "info")
	v.SetDefault("throttle.poll_backoff", "30s")
	v.SetDefault("throttle.settle", "1s")
	v.SetDefault("throttle.max_attempts", 0)
	v.SetDefault("throttle.max_wait", "0s")
	v.SetDefault("scheduler.submit_binary", "sbatch")
	v.SetDefault("scheduler.queue_binary", "squeue")

	v.SetEnvPrefix("MCBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, o := range overrides {
		if err := v.MergeConfigMap(o); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}
