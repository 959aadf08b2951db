package main

import (
	"context"

	"github.com/goliatone/go-catalog-cache/catalog"
	"github.com/goliatone/go-catalog-cache/pkg/di"
	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

// collectionCommands binds one collection of the container to the generic
// list/categories/get/nav subcommands.
type collectionCommands struct {
	use     string
	aliases []string
	short   string

	list       func(c *di.Container, ctx context.Context, q catalog.ListQuery) catalog.Page
	categories func(c *di.Container, ctx context.Context) []string
	get        func(c *di.Container, ctx context.Context, slug string) *catalog.Record
	nav        func(c *di.Container, ctx context.Context) []catalog.NavEntry
	featured   func(c *di.Container, ctx context.Context, limit int) []catalog.Record
}

var ideasCollection = collectionCommands{
	use:   "ideas",
	short: "Read published ideas",
	list: func(c *di.Container, ctx context.Context, q catalog.ListQuery) catalog.Page {
		return c.ListIdeas(ctx, q.PageSize, q.Cursor, q.Categories, q.Query)
	},
	categories: (*di.Container).ListCategories,
	get:        (*di.Container).GetIdeaBySlug,
	nav:        (*di.Container).ListMinimalIdeasForNavigation,
	featured:   (*di.Container).ListFeaturedIdeas,
}

var technologiesCollection = collectionCommands{
	use:     "tech",
	aliases: []string{"technologies"},
	short:   "Read published technology entries",
	list: func(c *di.Container, ctx context.Context, q catalog.ListQuery) catalog.Page {
		return c.ListTechnologies(ctx, q.PageSize, q.Cursor, q.Categories, q.Query)
	},
	categories: (*di.Container).ListTechnologyCategories,
	get:        (*di.Container).GetTechnologyBySlug,
	nav:        (*di.Container).ListMinimalTechnologiesForNavigation,
}

func newCollectionCmd(opts *rootOptions, cc collectionCommands) *cobra.Command {
	cmd := &cobra.Command{
		Use:     cc.use,
		Aliases: cc.aliases,
		Short:   cc.short,
	}

	var q catalog.ListQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "Print one page of records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cc.list(c, cmd.Context(), q))
		},
	}
	list.Flags().IntVar(&q.PageSize, "page-size", 16, "records per page (1-100)")
	list.Flags().StringVar(&q.Cursor, "cursor", "", "cursor returned by the previous page")
	list.Flags().StringSliceVar(&q.Categories, "category", nil, "only records in any of these categories")
	list.Flags().StringVarP(&q.Query, "query", "q", "", "case-insensitive search in title and summary")

	categories := &cobra.Command{
		Use:   "categories",
		Short: "Print the sorted distinct categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cc.categories(c, cmd.Context()))
		},
	}

	get := &cobra.Command{
		Use:   "get <slug>",
		Short: "Print the record whose title slugifies to slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			rec := cc.get(c, cmd.Context(), args[0])
			if rec == nil {
				return errors.New("no "+cc.use+" record with slug "+args[0], errors.CategoryNotFound).
					WithMetadata(map[string]any{"slug": args[0]})
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}

	nav := &cobra.Command{
		Use:   "nav",
		Short: "Print every record as id, title and slug in navigation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cc.nav(c, cmd.Context()))
		},
	}

	cmd.AddCommand(list, categories, get, nav)

	if cc.featured != nil {
		var limit int
		featured := &cobra.Command{
			Use:   "featured",
			Short: "Print featured records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.container()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cc.featured(c, cmd.Context(), limit))
			},
		}
		featured.Flags().IntVar(&limit, "limit", 3, "maximum number of records")
		cmd.AddCommand(featured)
	}
	return cmd
}
