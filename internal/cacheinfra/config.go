package cacheinfra

import (
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config holds the sizing of every sturdyc client created by this package.
type Config struct {
	// Capacity is the maximum number of entries per client. Must be greater than 0.
	Capacity int `yaml:"capacity"`

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int `yaml:"num_shards"`

	// TTL is used by the single-TTL service and by tags whose policy leaves TTL unset.
	TTL time.Duration `yaml:"ttl"`

	// EvictionPercentage specifies what percentage of entries to evict
	// when a client reaches its capacity. Must be between 1-100.
	EvictionPercentage int `yaml:"eviction_percentage"`

	// EarlyRefresh refreshes hot entries in the background before they expire.
	// Nil disables it, which keeps the TTL the upper bound on staleness.
	EarlyRefresh *EarlyRefreshConfig `yaml:"early_refresh"`

	// MissingRecordStorage lets fetch functions cache sturdyc.ErrNotFound results.
	MissingRecordStorage bool `yaml:"missing_record_storage"`

	// EvictionInterval sets how often expired entries are swept. Zero uses the default.
	EvictionInterval time.Duration `yaml:"eviction_interval"`
}

// EarlyRefreshConfig configures early refresh behavior.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async"`
	SyncRefreshTime     time.Duration `yaml:"sync"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig returns a Config with sensible defaults for a catalog workload:
// a few thousand records per collection and no background refreshes.
func DefaultConfig() Config {
	return Config{
		Capacity:             10000,
		NumShards:            256,
		TTL:                  5 * time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

const (
	msgPositive    = "must be greater than 0"
	msgPercentage  = "must be between 1 and 100"
	msgNonNegative = "must be non-negative"
)

// Validate checks the configuration and reports the first offending field, in
// field-name order, as a *ConfigError.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required.Error(msgPositive), validation.Min(1).Error(msgPositive)),
		validation.Field(&c.NumShards, validation.Required.Error(msgPositive), validation.Min(1).Error(msgPositive)),
		validation.Field(&c.TTL, validation.Required.Error(msgPositive), validation.Min(time.Duration(1)).Error(msgPositive)),
		validation.Field(&c.EvictionPercentage,
			validation.Required.Error(msgPercentage),
			validation.Min(1).Error(msgPercentage),
			validation.Max(100).Error(msgPercentage)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0)).Error(msgNonNegative)),
	)
	if err != nil {
		return firstConfigError("", err)
	}

	if c.EarlyRefresh != nil {
		e := *c.EarlyRefresh
		err := validation.ValidateStruct(&e,
			validation.Field(&e.MinAsyncRefreshTime, validation.Min(time.Duration(0)).Error(msgNonNegative)),
			validation.Field(&e.MaxAsyncRefreshTime, validation.Min(time.Duration(0)).Error(msgNonNegative)),
			validation.Field(&e.SyncRefreshTime, validation.Min(time.Duration(0)).Error(msgNonNegative)),
			validation.Field(&e.RetryBaseDelay, validation.Min(time.Duration(0)).Error(msgNonNegative)),
		)
		if err != nil {
			return firstConfigError("EarlyRefresh.", err)
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

func firstConfigError(prefix string, err error) error {
	errs, ok := err.(validation.Errors)
	if !ok || len(errs) == 0 {
		return &ConfigError{Field: prefix, Message: err.Error()}
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &ConfigError{Field: prefix + fields[0], Message: errs[fields[0]].Error()}
}
