package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront/internal/page"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

// selectionFlags picks lines for the current invocation. Selection is never
// written to the state file, so it is given again on each command.
type selectionFlags struct {
	positions []int
	ids       []string
	all       bool
}

func (s *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&s.positions, "select", nil, "cart positions to select, e.g. --select 0,2")
	cmd.Flags().StringSliceVar(&s.ids, "select-id", nil, "product ids to select, e.g. --select-id 12,31")
	cmd.Flags().BoolVar(&s.all, "all", false, "select every line")
}

func (s selectionFlags) apply(ctx context.Context, p *page.Page) error {
	if s.all {
		p.Cart().SelectAll(ctx, true)
		return nil
	}
	for _, pos := range s.positions {
		if err := p.Cart().ToggleSelect(ctx, pos, true); err != nil {
			return err
		}
	}
	for _, id := range s.ids {
		if err := p.Cart().ToggleSelectByID(ctx, types.ID(id), true); err != nil {
			return err
		}
	}
	return nil
}

// lineTarget names a cart line by its position argument or by --id.
type lineTarget struct {
	id  string
	pos int
}

func (l *lineTarget) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.id, "id", "", "product id of the line, instead of a position")
}

func (l *lineTarget) parse(args []string) error {
	switch {
	case l.id != "" && len(args) > 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "give a position or --id, not both")
	case l.id != "":
		return nil
	case len(args) == 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "a position or --id is required")
	}
	pos, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	l.pos = pos
	return nil
}

func (l *lineTarget) byID() bool { return l.id != "" }

func newCartCmd(a *app) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
				return sel.apply(ctx, p)
			})
		},
	}
	sel.register(cmd)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <product-id>",
			Short: "Add one unit of a catalog product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
					if err := p.EnsureCatalog(ctx); err != nil {
						return err
					}
					return p.Cart().AddByID(ctx, types.ID(args[0]))
				})
			},
		},
		newQuantityCmd(a, "inc", "Increase the quantity of a line", 1),
		newQuantityCmd(a, "dec", "Decrease the quantity of a line; at zero the line is removed", -1),
		newRemoveCmd(a),
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
					return p.Cart().Clear(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Replace the cart with sample products",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
					return p.Cart().SeedSample(ctx)
				})
			},
		},
		newCheckoutCmd(a),
	)
	return cmd
}

func newQuantityCmd(a *app, use, short string, sign int) *cobra.Command {
	var (
		by     int
		target lineTarget
	)
	cmd := &cobra.Command{
		Use:   use + " [position]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := target.parse(args); err != nil {
				return err
			}
			if by < 1 {
				return pkgerrors.New(pkgerrors.CodeValidation, "--by must be at least 1")
			}
			return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
				if target.byID() {
					return p.Cart().ChangeQuantityByID(ctx, types.ID(target.id), sign*by)
				}
				return p.Cart().ChangeQuantity(ctx, target.pos, sign*by)
			})
		},
	}
	cmd.Flags().IntVar(&by, "by", 1, "units to change")
	target.register(cmd)
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var target lineTarget
	cmd := &cobra.Command{
		Use:   "remove [position]",
		Short: "Remove a line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := target.parse(args); err != nil {
				return err
			}
			return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
				if target.byID() {
					return p.Cart().RemoveByID(ctx, types.ID(target.id))
				}
				return p.Cart().RemoveAt(ctx, target.pos)
			})
		},
	}
	target.register(cmd)
	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check out the selected lines (simulated)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cartOp(cmd.Context(), func(ctx context.Context, p *page.Page) error {
				if err := sel.apply(ctx, p); err != nil {
					return err
				}
				items, err := p.Cart().Checkout(ctx)
				if err != nil {
					return err
				}
				if !a.asJSON {
					fmt.Fprintf(a.out, "Checked out %d lines.\n", len(items))
				}
				return nil
			})
		},
	}
	sel.register(cmd)
	return cmd
}

// cartOp loads the cart page, runs op and prints the page whether or not op
// failed.
func (a *app) cartOp(ctx context.Context, op func(context.Context, *page.Page) error) error {
	p, err := a.load(ctx, page.KindCart)
	if err != nil {
		return err
	}
	opErr := op(ctx, p)
	if err := a.printCart(p); err != nil {
		return err
	}
	return opErr
}

func parsePosition(raw string) (int, error) {
	pos, err := strconv.Atoi(raw)
	if err != nil || pos < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("position must be a non-negative integer, got %q", raw))
	}
	return pos, nil
}
