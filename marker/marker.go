// Package marker stores stage completion markers.
//
// A marker is a persisted existence flag keyed by the stage index and the
// configuration values that shape that stage's output. Its presence means the
// stage finished for that configuration; its absence forces the stage to run.
// Markers are created once and never rewritten.
package marker

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Prefix starts every key produced by ComposeKey.
const Prefix = ".done_stage_"

// ErrInvalidKey is returned by stores for keys that cannot name a marker.
var ErrInvalidKey = errors.New("marker: invalid key")

// Key identifies one completion marker, e.g. ".done_stage_2_all_wpbpe10000".
type Key string

func (k Key) String() string { return string(k) }

// ComposeKey builds the marker key for stage from the fingerprint fields.
// Fields are joined with '_' in the order given, so the same stage and the
// same field values always give the same key and reordering gives a
// different one.
func ComposeKey(stage int, fields ...string) Key {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(strconv.Itoa(stage))
	for _, f := range fields {
		b.WriteByte('_')
		b.WriteString(f)
	}
	return Key(b.String())
}

// Concat joins parts with no separator. Use it for a single fingerprint field
// made of several values, like unit+wp_type+vocab_size.
func Concat(parts ...string) string {
	return strings.Join(parts, "")
}

// Store is a flat namespace of completion markers.
type Store interface {
	// Exists reports whether the marker for key is present.
	Exists(ctx context.Context, key Key) (bool, error)

	// Create records the marker for key. Creating an existing marker is a no-op.
	Create(ctx context.Context, key Key) error

	// List returns every marker key in the store, sorted.
	List(ctx context.Context) ([]Key, error)
}

func validate(key Key) error {
	s := string(key)
	if strings.TrimSpace(s) == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(s, "/\\\x00") || s == "." || s == ".." {
		return ErrInvalidKey
	}
	return nil
}
