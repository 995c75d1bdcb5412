// Package pagination implements keyset pages. A cursor is the sort key and id
// of the last row served, base64url encoded as "key|id".
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

const keySeparator = "|"

var errCursorShape = errors.New("invalid cursor format")

// Params is the limit and opaque cursor a caller asked for.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor positions a page ordered by (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// ValueCursor positions a page ordered by an integer column, then id.
type ValueCursor struct {
	Value int64
	ID    uuid.UUID
}

// NormalizeLimit clamps limit to [1, MaxLimit]; non-positive means DefaultLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// LimitWithBuffer asks for one extra row so Trim can tell whether another page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Trim drops the probe row fetched by LimitWithBuffer and reports whether it
// was present.
func Trim[T any](rows []T, fetched int) ([]T, bool) {
	if fetched <= 0 || len(rows) < fetched {
		return rows, false
	}
	return rows[:fetched-1], true
}

func EncodeCursor(c Cursor) string {
	return encode(c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID)
}

func EncodeValueCursor(c ValueCursor) string {
	return encode(strconv.FormatInt(c.Value, 10), c.ID)
}

// ParseCursor returns nil, nil for a blank cursor.
func ParseCursor(value string) (*Cursor, error) {
	return parse(value, func(key string, id uuid.UUID) (*Cursor, error) {
		at, err := time.Parse(time.RFC3339Nano, key)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
		}
		return &Cursor{CreatedAt: at, ID: id}, nil
	})
}

func ParseValueCursor(value string) (*ValueCursor, error) {
	return parse(value, func(key string, id uuid.UUID) (*ValueCursor, error) {
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor value: %w", err)
		}
		return &ValueCursor{Value: n, ID: id}, nil
	})
}

func encode(key string, id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key + keySeparator + id.String()))
}

func parse[C any](value string, build func(key string, id uuid.UUID) (*C, error)) (*C, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	key, rawID, ok := strings.Cut(string(raw), keySeparator)
	if !ok || key == "" {
		return nil, errCursorShape
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return build(key, id)
}
