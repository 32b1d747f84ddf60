package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the page size when a cursor is given without a limit.
	DefaultLimit = 24
	// MaxLimit caps how many items one page can hold.
	MaxLimit = 100

	cursorPrefix = "o:"
)

// Params holds cursor pagination inputs from controllers.
type Params struct {
	Limit  int
	Cursor string
}

// Requested reports whether the caller asked for a page at all.
func (p Params) Requested() bool {
	return p.Limit > 0 || strings.TrimSpace(p.Cursor) != ""
}

// NormalizeLimit enforces the default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds an opaque cursor pointing at offset.
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// ParseCursor decodes a cursor back into its offset. An empty cursor is offset 0.
func ParseCursor(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: %w", err)
	}
	raw, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor format")
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid cursor offset")
	}
	return offset, nil
}

// Slice returns the page of items selected by p and the cursor of the next
// page, empty on the last one.
func Slice[T any](items []T, p Params) ([]T, string, error) {
	offset, err := ParseCursor(p.Cursor)
	if err != nil {
		return nil, "", err
	}
	if offset >= len(items) {
		return []T{}, "", nil
	}
	end := offset + NormalizeLimit(p.Limit)
	if end >= len(items) {
		return items[offset:], "", nil
	}
	return items[offset:end], EncodeCursor(end), nil
}
