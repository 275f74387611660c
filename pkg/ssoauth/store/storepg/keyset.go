package storepg

import (
	"strconv"
	"time"

	"github.com/Abraxas-365/manifesto/pkg/ssoauth/store"
)

const cursorLayout = time.RFC3339Nano

// EncodeCursor formats t as the opaque cursor string callers pass back
// in ListParams.Gt/Lt to page from that row.
func EncodeCursor(t time.Time) string { return t.UTC().Format(cursorLayout) }

const defaultListLimit = 50

// keysetQuery builds a created_at-keyed cursor query: gt/lt are
// RFC3339Nano created_at cursors produced by EncodeCursor. When only Lt
// is set the query runs descending (most-recent page first) so the
// LIMIT keeps the right rows; reverseIfDescendingOnly restores ascending
// order for the caller afterward.
func keysetQuery(table, columns string, p store.ListParams) (string, []interface{}) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	switch {
	case p.Gt != nil:
		return "SELECT " + columns + " FROM " + table + " WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2",
			[]interface{}{*p.Gt, limit}
	case p.Lt != nil:
		return "SELECT " + columns + " FROM " + table + " WHERE created_at < $1 ORDER BY created_at DESC LIMIT $2",
			[]interface{}{*p.Lt, limit}
	default:
		return "SELECT " + columns + " FROM " + table + " ORDER BY created_at ASC LIMIT $1",
			[]interface{}{limit}
	}
}

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
