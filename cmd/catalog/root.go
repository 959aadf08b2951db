package main

import (
	"encoding/json"
	"io"

	"github.com/goliatone/go-catalog-cache/config"
	"github.com/goliatone/go-catalog-cache/pkg/di"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFiles   []string
	logLevel   string

	containerOpts []di.Option
}

// newRootCmd builds the command tree. containerOpts are passed to every container
// the commands build.
func newRootCmd(containerOpts ...di.Option) *cobra.Command {
	opts := &rootOptions{containerOpts: containerOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Read the idea and technology catalog from the content store",
		Long: `catalog reads published ideas and technology entries from the remote
content store, normalises them and caches results per query family.

Configuration comes from defaults, an optional YAML file, .env files and
CATALOG_* environment variables, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to read (missing files are skipped)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newCollectionCmd(opts, ideasCollection),
		newCollectionCmd(opts, technologiesCollection),
		newCacheCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// load reads the configuration and applies flag overrides.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath, o.envFiles...)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func (o *rootOptions) container() (*di.Container, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return o.containerFrom(cfg)
}

func (o *rootOptions) containerFrom(cfg config.Config) (*di.Container, error) {
	return di.NewContainer(cfg, o.containerOpts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
