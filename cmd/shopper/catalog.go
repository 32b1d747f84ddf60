package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/page"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

func newProductsCmd(a *app) *cobra.Command {
	var q catalog.Query
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := catalog.Sort(nil, q.Sort); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
			}
			p, err := a.load(cmd.Context(), page.KindProducts)
			if err != nil {
				return err
			}
			p.SetQuery(cmd.Context(), q)
			return a.printGrid(p.Catalog().View(q))
		},
	}
	cmd.Flags().StringVar(&q.Sort, "sort", catalog.SortName, "order: name, price-asc or price-desc")
	cmd.Flags().StringVar(&q.Category, "category", catalog.AllCategories, "only show this category")
	return cmd
}

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories with their products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories := catalog.New(a.api, a.logg).LoadCategoriesWithProducts(cmd.Context())
			if a.asJSON {
				return a.printJSON(categories)
			}
			if len(categories) == 0 {
				fmt.Fprintln(a.out, "No categories found.")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tPRODUCTS")
			for _, c := range categories {
				fmt.Fprintf(tw, "%s\t%d\n", c.Name, len(c.Products))
			}
			return tw.Flush()
		},
	}
}

func newCEPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cep <postal-code>",
		Short: "Look up the address of a Brazilian postal code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.postal.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(addr)
			}
			fmt.Fprintf(a.out, "%s\n%s, %s - %s\n%s\n", addr.Street, addr.Neighborhood, addr.City, addr.State, addr.PostalCode)
			return nil
		},
	}
}
