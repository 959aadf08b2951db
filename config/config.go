// Package config assembles the process-wide catalog configuration once at start.
//
// Sources are layered, later ones winning: built-in defaults, an optional YAML
// file, an optional .env file, then the process environment. Missing store
// credentials are not a validation error: Store.Configured reports them and every
// read then returns empty results without logging.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-catalog-cache/cache"
	"github.com/goliatone/go-catalog-cache/catalog"
	"github.com/goliatone/go-catalog-cache/catalogcache"
	"github.com/goliatone/go-catalog-cache/internal/logging"
	"github.com/goliatone/go-catalog-cache/remote"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "CATALOG_"

// Config is the complete configuration.
type Config struct {
	Store        StoreConfig      `yaml:"store"`
	Ideas        CollectionConfig `yaml:"ideas"`
	Technologies CollectionConfig `yaml:"technologies"`
	Cache        CacheConfig      `yaml:"cache"`
	Log          logging.Config   `yaml:"log"`
	Server       ServerConfig     `yaml:"server"`
}

// StoreConfig locates the remote store.
type StoreConfig struct {
	BaseURL   string        `yaml:"base_url"`
	BaseID    string        `yaml:"base_id"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	// MaxPages bounds every full-collection walk.
	MaxPages int `yaml:"max_pages"`
}

// Configured reports whether credentials and a base are present.
func (s StoreConfig) Configured() bool {
	return s.Remote().Configured()
}

// Remote converts s to the client configuration.
func (s StoreConfig) Remote() remote.Config {
	return remote.Config{
		BaseURL:   s.BaseURL,
		BaseID:    s.BaseID,
		Token:     s.Token,
		Timeout:   s.Timeout,
		UserAgent: s.UserAgent,
	}
}

// CollectionConfig overrides the default mapping of one collection. Empty values
// keep the defaults.
type CollectionConfig struct {
	Table          string   `yaml:"table"`
	TitleFields    []string `yaml:"title_fields"`
	SummaryFields  []string `yaml:"summary_fields"`
	CategoryFields []string `yaml:"category_fields"`
	DetailFields   []string `yaml:"detail_fields"`
	SortField      string   `yaml:"sort_field"`
	StatusField    string   `yaml:"status_field"`
	PublishedValue string   `yaml:"published_value"`
	// NoStatusFilter disables the published constraint.
	NoStatusFilter bool `yaml:"no_status_filter"`
	// RequestFields sends fields[] projections; every mapped field must exist.
	RequestFields bool `yaml:"request_fields"`
	SortInStore   bool `yaml:"sort_in_store"`
}

// Apply overlays c on base.
func (c CollectionConfig) Apply(base catalog.Collection) catalog.Collection {
	if c.Table != "" {
		base.Table = c.Table
	}
	if len(c.TitleFields) > 0 {
		base.TitleFields = c.TitleFields
	}
	if len(c.SummaryFields) > 0 {
		base.SummaryFields = c.SummaryFields
	}
	if len(c.CategoryFields) > 0 {
		base.CategoryFields = c.CategoryFields
	}
	if len(c.DetailFields) > 0 {
		base.DetailFields = c.DetailFields
	}
	if c.SortField != "" {
		base.SortField = c.SortField
	}
	if c.StatusField != "" {
		base.StatusField = c.StatusField
	}
	if c.PublishedValue != "" {
		base.PublishedValue = c.PublishedValue
	}
	if c.NoStatusFilter {
		base.StatusField = ""
	}
	if c.RequestFields {
		base.RequestFields = true
	}
	if c.SortInStore {
		base.SortInStore = true
	}
	return base
}

// CacheConfig sizes the cache and sets per-family TTLs.
type CacheConfig struct {
	cache.Config `yaml:",inline"`
	// TTLs maps a query family (list, featured, detail, categories, navigation) to its TTL.
	TTLs     map[string]time.Duration `yaml:"ttls"`
	Disabled bool                     `yaml:"disabled"`
}

// ServerConfig configures the HTTP server of the CLI.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// RevalidateSecret, when set, must accompany every revalidation request.
	RevalidateSecret string        `yaml:"revalidate_secret"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			BaseURL:  remote.DefaultBaseURL,
			Timeout:  remote.DefaultTimeout,
			MaxPages: catalog.DefaultMaxPages,
		},
		Ideas:        CollectionConfig{Table: "Ideas"},
		Technologies: CollectionConfig{Table: "Technologies"},
		Cache:        CacheConfig{Config: cache.DefaultConfig()},
		Log:          logging.Config{Level: "info", Format: "json"},
		Server:       ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when
// empty), the dotenv files that exist, and the process environment.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return Config{}, err
		}
	}

	dotenv := map[string]string{}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return Config{}, errors.Wrap(err, errors.CategoryBadInput, "read env file").
				WithMetadata(map[string]any{"file": file})
		}
		for k, v := range values {
			dotenv[k] = v
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.FromEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MergeFile overlays the YAML document at path on c.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "read config file").
			WithMetadata(map[string]any{"file": path})
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "parse config file").
			WithMetadata(map[string]any{"file": path})
	}
	return nil
}

// FromEnv overlays the CATALOG_* variables returned by lookup on c.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	env.str("BASE_URL", &c.Store.BaseURL)
	env.str("BASE_ID", &c.Store.BaseID)
	env.str("API_TOKEN", &c.Store.Token)
	env.str("USER_AGENT", &c.Store.UserAgent)
	env.duration("TIMEOUT", &c.Store.Timeout)
	env.integer("MAX_PAGES", &c.Store.MaxPages)

	env.str("IDEAS_TABLE", &c.Ideas.Table)
	env.list("IDEAS_TITLE_FIELDS", &c.Ideas.TitleFields)
	env.list("IDEAS_SUMMARY_FIELDS", &c.Ideas.SummaryFields)
	env.list("IDEAS_CATEGORY_FIELDS", &c.Ideas.CategoryFields)
	env.boolean("IDEAS_REQUEST_FIELDS", &c.Ideas.RequestFields)
	env.boolean("IDEAS_SORT_IN_STORE", &c.Ideas.SortInStore)

	env.str("TECH_TABLE", &c.Technologies.Table)
	env.list("TECH_TITLE_FIELDS", &c.Technologies.TitleFields)
	env.list("TECH_SUMMARY_FIELDS", &c.Technologies.SummaryFields)
	env.list("TECH_CATEGORY_FIELDS", &c.Technologies.CategoryFields)
	env.boolean("TECH_REQUEST_FIELDS", &c.Technologies.RequestFields)
	env.boolean("TECH_SORT_IN_STORE", &c.Technologies.SortInStore)

	env.duration("CACHE_TTL", &c.Cache.TTL)
	env.integer("CACHE_CAPACITY", &c.Cache.Capacity)
	env.boolean("CACHE_DISABLED", &c.Cache.Disabled)

	env.str("LOG_LEVEL", &c.Log.Level)
	env.str("LOG_FORMAT", &c.Log.Format)
	env.str("SERVER_ADDR", &c.Server.Addr)
	env.str("REVALIDATE_SECRET", &c.Server.RevalidateSecret)

	return env.err()
}

// Validate checks the configuration. Absent credentials are allowed.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c.Store,
		validation.Field(&c.Store.BaseURL, validation.Required, is.RequestURL),
		validation.Field(&c.Store.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Store.MaxPages, validation.Required, validation.Min(1), validation.Max(1000)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid store configuration")
	}

	for name, col := range map[string]CollectionConfig{"ideas": c.Ideas, "technologies": c.Technologies} {
		col := col
		if err := validation.ValidateStruct(&col,
			validation.Field(&col.Table, validation.Required),
		); err != nil {
			return errors.FromOzzoValidation(err, "invalid "+name+" configuration")
		}
	}

	families := make([]any, 0, len(catalogcache.Families))
	for _, f := range catalogcache.Families {
		families = append(families, f)
	}
	if err := validation.Validate(c.Cache.TTLs,
		validation.Each(validation.Min(time.Duration(0))),
	); err != nil {
		return errors.FromOzzoValidation(err, "invalid cache ttls")
	}
	for family := range c.Cache.TTLs {
		if err := validation.Validate(family, validation.In(families...)); err != nil {
			return errors.New("unknown cache family "+family, errors.CategoryValidation).
				WithMetadata(map[string]any{"family": family})
		}
	}
	if !c.Cache.Disabled {
		if err := c.Cache.Config.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "invalid cache configuration")
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.New("invalid log level "+c.Log.Level, errors.CategoryValidation).
			WithMetadata(map[string]any{"level": c.Log.Level})
	}
	return nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) list(name string, dst *[]string) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = d
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) fail(name, value string, err error) {
	e.errs = append(e.errs, errors.Wrap(err, errors.CategoryBadInput, "invalid "+EnvPrefix+name).
		WithMetadata(map[string]any{"variable": EnvPrefix + name, "value": value}))
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return e.errs[0]
}
