package report

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DedupeResult is the outcome of Deduplicate.
type DedupeResult struct {
	Rows []MappedRow
	// Duplicates counts rows discarded because a later row had the same key.
	Duplicates int
	// NullKeys counts rows discarded because the key was null.
	NullKeys int
}

// Deduplicate keeps the last row for every key value, in the order those
// surviving rows appeared in the input. Rows with a null key are dropped.
func Deduplicate(rows []MappedRow, key string) DedupeResult {
	var result DedupeResult
	seen := make(map[string]struct{}, len(rows))
	kept := make([]MappedRow, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		v := rows[i][key]
		if v == nil {
			result.NullKeys++
			continue
		}
		k := keyString(v)
		if _, dup := seen[k]; dup {
			result.Duplicates++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, rows[i])
	}
	slices.Reverse(kept)
	result.Rows = kept
	return result
}

func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case time.Time:
		return k.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}
