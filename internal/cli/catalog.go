package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/TFFe0123/woody-nest/internal/catalog"
	"github.com/spf13/cobra"
)

func catalogCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the furniture catalog",
	}
	cmd.AddCommand(catalogListCmd(opts))
	cmd.AddCommand(catalogShowCmd(opts))
	return cmd
}

func catalogListCmd(opts *options) *cobra.Command {
	var filter catalog.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openCatalog(cmd, opts)
			if err != nil {
				return err
			}
			defer repo.Close()

			items, err := repo.ListFurniture(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tSTYLE\tMATERIAL")
			for _, f := range items {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", f.ID, f.Title, f.Price, f.Style, f.Material)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Style, "style", "", "exact style filter")
	cmd.Flags().StringVar(&filter.Material, "material", "", "material substring filter")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum rows (0 uses the server default)")
	return cmd
}

func catalogShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			repo, err := openCatalog(cmd, opts)
			if err != nil {
				return err
			}
			defer repo.Close()

			f, err := repo.GetFurniture(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:        %d\n", f.ID)
			fmt.Fprintf(out, "title:     %s\n", f.Title)
			fmt.Fprintf(out, "price:     %d\n", f.Price)
			fmt.Fprintf(out, "style:     %s\n", f.Style)
			fmt.Fprintf(out, "material:  %s\n", f.Material)
			fmt.Fprintf(out, "location:  %s\n", f.Location)
			return nil
		},
	}
}

func openCatalog(cmd *cobra.Command, opts *options) (*catalog.Repository, error) {
	cfg, _, err := opts.load(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN())
}
