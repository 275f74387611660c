package storesqlite

import (
	"strconv"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

// cursorLayout matches storepg.EncodeCursor so a caller can page a
// Postgres-backed deployment and a SQLite-backed one with the same
// cursor strings.
const cursorLayout = time.RFC3339Nano

func EncodeCursor(t time.Time) string { return t.UTC().Format(cursorLayout) }

const defaultListLimit = 50

func reverseIfDescendingOnly[T any](p store.ListParams, s []T) {
	if p.Gt == nil && p.Lt != nil {
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

func appendWhere(existing, cond string) string {
	if existing == "" {
		return cond
	}
	return existing + " AND " + cond
}

// limitOf returns p.Limit or defaultListLimit when unset.
func limitOf(p store.ListParams) int {
	if p.Limit > 0 {
		return p.Limit
	}
	return defaultListLimit
}
