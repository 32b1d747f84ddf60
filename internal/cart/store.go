package cart

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Store persists the cart under the fixed "cart" key.
type Store struct {
	kv   storage.Storage
	logg *logger.Logger
}

func NewStore(kv storage.Storage, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{kv: kv, logg: logg}
}

// Load returns the persisted cart. Absent, unreadable or malformed entries
// yield an empty cart; it never fails.
func (s *Store) Load(ctx context.Context) Cart {
	return s.load(ctx, storage.KeyCart)
}

// Save overwrites the persisted cart.
func (s *Store) Save(ctx context.Context, c Cart) error {
	return s.save(ctx, storage.KeyCart, c)
}

// Clear removes the entry entirely.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, storage.KeyCart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "")
	}
	return nil
}

// SaveCheckout stages the lines selected for checkout.
func (s *Store) SaveCheckout(ctx context.Context, c Cart) error {
	return s.save(ctx, storage.KeySelectedForCheckout, c)
}

// LoadCheckout returns the last staged checkout (empty when none).
func (s *Store) LoadCheckout(ctx context.Context) Cart {
	return s.load(ctx, storage.KeySelectedForCheckout)
}

func (s *Store) save(ctx context.Context, key string, c Cart) error {
	if c == nil {
		c = Cart{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.kv.Set(ctx, key, string(raw)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "")
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) Cart {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return Cart{}
	}
	ctx = s.logg.WithField(ctx, "storage_key", key)
	if err != nil {
		s.logg.Error(ctx, "read persisted cart", pkgerrors.Wrap(pkgerrors.CodeStorage, err, ""))
		return Cart{}
	}
	c, err := decodeCart(raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "malformed persisted cart reset to empty")
		return Cart{}
	}
	return c
}

// persistedLine tolerates entries written by older clients: a missing
// quantity means 1.
type persistedLine struct {
	ID       types.ID        `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity *int            `json:"quantity"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
	Image    string          `json:"image"`
	Category string          `json:"category"`
}

// decodeCart parses raw and restores the line invariants: lines with
// quantity below 1 are dropped and duplicate ids are merged in first-seen order.
func decodeCart(raw string) (Cart, error) {
	var lines []persistedLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedState, err, "")
	}
	c := make(Cart, 0, len(lines))
	for _, line := range lines {
		qty := 1
		if line.Quantity != nil {
			qty = *line.Quantity
		}
		if qty < 1 {
			continue
		}
		if idx := c.IndexOf(line.ID); idx >= 0 {
			c[idx].Quantity += qty
			continue
		}
		c = append(c, LineItem{
			ID:       line.ID,
			Name:     line.Name,
			Price:    line.Price,
			Quantity: qty,
			Size:     line.Size,
			Color:    line.Color,
			Image:    line.Image,
			Category: line.Category,
		})
	}
	return c, nil
}
