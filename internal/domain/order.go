package domain

import (
	"slices"
	"strings"
	"time"
)

// timestampLayouts are tried in order by ParseTimestamp. The warning service
// sends RFC 3339 UTC stamps; the rest cover ISO-8601 local forms and the
// HTTP date formats seen on older bulletins.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTimestamp interprets an issuedAt string. The second result is false
// when no known layout matches.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WarningLookup resolves a warning by ID, reporting whether it is known.
type WarningLookup interface {
	Get(id WarningID) (ParsedWarning, bool)
}

// sortKey orders warnings newest first. Uncached IDs and unparseable
// timestamps rank as the Unix epoch and always behind any valid timestamp.
type sortKey struct {
	valid bool
	at    time.Time
}

// Order returns ids in display order: descending by issue time. The sort is
// stable, so IDs with equal keys (including all unresolved ones) keep their
// input order. ids is not modified.
func Order(ids []WarningID, lookup WarningLookup) []WarningID {
	out := slices.Clone(ids)
	if len(out) < 2 {
		return out
	}

	keys := make(map[WarningID]sortKey, len(out))
	for _, id := range out {
		keys[id] = keyFor(id, lookup)
	}

	slices.SortStableFunc(out, func(a, b WarningID) int {
		ka, kb := keys[a], keys[b]
		if ka.valid != kb.valid {
			if ka.valid {
				return -1
			}
			return 1
		}
		return kb.at.Compare(ka.at)
	})
	return out
}

func keyFor(id WarningID, lookup WarningLookup) sortKey {
	epoch := sortKey{at: time.Unix(0, 0).UTC()}
	if lookup == nil {
		return epoch
	}
	w, ok := lookup.Get(id)
	if !ok {
		return epoch
	}
	at, ok := ParseTimestamp(w.IssuedAt)
	if !ok {
		return epoch
	}
	return sortKey{valid: true, at: at}
}
