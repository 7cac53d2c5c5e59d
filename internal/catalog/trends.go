package catalog

import (
	"errors"
	"sort"

	"github.com/bookshelf-agent/server/internal/agent/model"
	errx "github.com/bookshelf-agent/server/internal/core/error"
)

const unknownKey = "unknown"

// Tally counts keys and remembers the order they were first seen in,
// so rankings break ties deterministically.
type Tally struct {
	order  []string
	counts map[string]int
}

func NewTally() *Tally {
	return &Tally{counts: map[string]int{}}
}

// Add counts each key once. Empty keys are ignored.
func (t *Tally) Add(keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := t.counts[k]; !ok {
			t.order = append(t.order, k)
		}
		t.counts[k]++
	}
}

func (t *Tally) Len() int { return len(t.order) }

// Count returns how often key was added.
func (t *Tally) Count(key string) int { return t.counts[key] }

// Counts returns a copy of the counters.
func (t *Tally) Counts() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Top returns up to n keys by descending count; equal counts keep first-seen order.
func (t *Tally) Top(n int) []string {
	keys := append([]string(nil), t.order...)
	sort.SliceStable(keys, func(i, j int) bool { return t.counts[keys[i]] > t.counts[keys[j]] })
	if n >= 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// Max returns the most frequent key, or "" for an empty tally.
func (t *Tally) Max() string {
	top := t.Top(1)
	if len(top) == 0 {
		return ""
	}
	return top[0]
}

// AnalyzeReadingTrends summarises a reading history. Records without an author or
// genre are counted under "unknown".
func AnalyzeReadingTrends(history []model.ReadingRecord) (model.TrendAnalysis, error) {
	if len(history) == 0 {
		return model.TrendAnalysis{}, errx.Invalid(errors.New("reading history is empty"))
	}
	genres, authors := NewTally(), NewTally()
	for _, r := range history {
		genres.Add(orUnknown(r.Genre))
		authors.Add(orUnknown(r.Author))
	}
	return model.TrendAnalysis{
		TotalBooks:         len(history),
		FavoriteGenre:      genres.Max(),
		FavoriteAuthor:     authors.Max(),
		GenreDistribution:  genres.Counts(),
		AuthorDistribution: authors.Counts(),
	}, nil
}

func orUnknown(v string) string {
	if v == "" {
		return unknownKey
	}
	return v
}
