package catalog

import (
	"fmt"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

const (
	SortName      = "name"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

// Names are compared with Portuguese collation so accented names sort where a
// shopper expects them.
var nameLocale = language.BrazilianPortuguese

// Sort returns a sorted copy of products. An empty key means SortName.
func Sort(products []storefrontapi.Product, by string) ([]storefrontapi.Product, error) {
	out := slices.Clone(products)
	switch by {
	case "", SortName:
		col := collate.New(nameLocale, collate.IgnoreCase)
		slices.SortStableFunc(out, func(a, b storefrontapi.Product) int {
			return col.CompareString(a.Name, b.Name)
		})
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b storefrontapi.Product) int {
			return a.Price.Cmp(b.Price)
		})
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b storefrontapi.Product) int {
			return b.Price.Cmp(a.Price)
		})
	default:
		return products, fmt.Errorf("unknown sort %q", by)
	}
	return out, nil
}
