// Package rowhash computes a deterministic SHA-256 key for a positional row.
//
// The hash is the storage dedupe key: it is always non-null, so reloading the
// same file is idempotent even when data columns contain NULLs (Postgres
// treats NULLs as distinct under UNIQUE).
//
// Canonicalization rules:
//   - Values are concatenated in column order using Separator.
//   - nil values are encoded as a single NUL byte (0x00) so missing differs
//     from empty-string.
//   - Common types are converted without fmt.Sprint.
//   - time.Time values are encoded as RFC3339Nano in UTC.
//   - Output is a lowercase hex string (length 64).
package rowhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSeparator is the ASCII Unit Separator.
const DefaultSeparator = "\x1f"

// Hasher hashes rows whose values line up with Columns.
type Hasher struct {
	// Columns names the row positions. With IncludeNames they are part of the
	// canonical form, which reduces accidental collisions when many values
	// are missing.
	Columns      []string
	IncludeNames bool

	// Separator between components. Empty means DefaultSeparator.
	Separator string
}

// New returns a Hasher over columns with names included.
func New(columns []string) Hasher {
	return Hasher{Columns: columns, IncludeNames: true}
}

// Sum returns the hex digest of row. Positions beyond len(Columns) are
// ignored; missing positions hash as nil.
func (h Hasher) Sum(row []any) string {
	sum := h.sum(row)
	return hex.EncodeToString(sum[:])
}

// Append returns a copy of rows with the digest appended to each row.
func (h Hasher) Append(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		nr := make([]any, len(r), len(r)+1)
		copy(nr, r)
		out[i] = append(nr, h.Sum(r))
	}
	return out
}

// Duplicates counts rows whose digest equals an earlier row's. Those rows
// collapse into one when the digest is used as a unique key.
func (h Hasher) Duplicates(rows [][]any) int {
	seen := make(map[[sha256.Size]byte]struct{}, len(rows))
	n := 0
	for _, r := range rows {
		k := h.sum(r)
		if _, ok := seen[k]; ok {
			n++
			continue
		}
		seen[k] = struct{}{}
	}
	return n
}

func (h Hasher) sum(row []any) [sha256.Size]byte {
	sep := h.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var b strings.Builder
	b.Grow(len(h.Columns) * 20)

	for i, name := range h.Columns {
		if i > 0 {
			b.WriteString(sep)
		}
		if h.IncludeNames {
			b.WriteString(name)
			b.WriteByte('=')
		}
		if i >= len(row) {
			b.WriteByte('\x00')
			continue
		}
		appendCanonicalValue(&b, row[i])
	}

	return sha256.Sum256([]byte(b.String()))
}

// appendCanonicalValue appends a stable, canonical representation of v.
func appendCanonicalValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')
	case string:
		b.WriteString(t)
	case []byte:
		b.Write(t)
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int:
		b.WriteString(strconv.Itoa(t))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))
	default:
		b.WriteString(fmt.Sprint(t))
	}
}
