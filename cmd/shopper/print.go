package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/notify"
	"github.com/angelmondragon/storefront/internal/page"
	"github.com/angelmondragon/storefront/internal/render"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// errorText shows coded errors the way the storefront does and anything else verbatim.
func errorText(err error) string {
	if pkgerrors.As(err) != nil {
		return pkgerrors.UserMessage(err)
	}
	return err.Error()
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNotifications(w io.Writer, notes []notify.Notification) {
	for _, n := range notes {
		mark := "ok"
		if n.Kind == notify.KindError {
			mark = "!!"
		}
		fmt.Fprintf(w, "[%s] %s\n", mark, n.Message)
	}
}

// printCart writes the page's header, cart lines and totals.
func (a *app) printCart(p *page.Page) error {
	if a.asJSON {
		return a.printJSON(p.Snapshot())
	}
	snap := p.Snapshot()
	printNotifications(a.out, snap.Notifications)

	if snap.Authenticated {
		fmt.Fprintf(a.out, "Logged in as %s\n", p.Session().FirstName())
	} else {
		fmt.Fprintln(a.out, "Not logged in")
	}

	if len(snap.Cart) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty.")
		return nil
	}

	selected := make(map[int]bool, len(snap.Selected))
	for _, pos := range snap.Selected {
		selected[pos] = true
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSEL\tPRODUCT\tQTY\tPRICE\tLINE")
	for i, line := range snap.Cart {
		mark := " "
		if selected[i] {
			mark = "x"
		}
		fmt.Fprintf(tw, "%d\t[%s]\t%s\t%d\t%s\t%s\n", i, mark, line.Name, line.Quantity,
			render.Money(line.Price), render.Money(line.Total()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	t := snap.Totals
	fmt.Fprintf(a.out, "\n%d items in cart, subtotal %s\n", t.ItemCount, render.Money(t.Subtotal))
	fmt.Fprintf(a.out, "Selected: %d lines, %d units, %s\n", t.SelectedLines, t.SelectedCount, render.Money(t.SelectedSubtotal))
	fmt.Fprintf(a.out, "Freight: %s  Discount: %s  Total: %s\n", render.Freight(t.Freight), render.Discount(t.Discount), render.Money(t.Total))
	return nil
}

func (a *app) printGrid(view catalog.View) error {
	if a.asJSON {
		return a.printJSON(view)
	}
	switch view.Status {
	case catalog.StatusFailed:
		fmt.Fprintf(a.out, "%s %s\n", catalog.FailedTitle, catalog.FailedDetail)
		return nil
	case catalog.StatusEmpty:
		fmt.Fprintf(a.out, "%s %s\n", catalog.EmptyTitle, catalog.EmptyDetail)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tCATEGORY\tPRICE\tWAS")
	for _, c := range view.Cards {
		was := ""
		if c.HasDiscount() {
			was = fmt.Sprintf("%s (-%d%%)", render.Money(*c.Product.OldPrice), c.DiscountPercent)
		}
		prod := c.Product
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", prod.ID, prod.Name, strings.TrimSpace(prod.Category), render.Money(prod.Price), was)
	}
	return tw.Flush()
}
