package conversations

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bookshelf-agent/server/internal/catalog"
)

// Mentions are the catalog entities found in one message. Each list is sorted and unique.
type Mentions struct {
	Authors []string
	Genres  []string
	Titles  []string
}

// Empty reports whether nothing was found.
func (m Mentions) Empty() bool {
	return len(m.Authors) == 0 && len(m.Genres) == 0 && len(m.Titles) == 0
}

// Extractor finds catalog authors, genres and titles in free text.
type Extractor struct {
	store   *catalog.Store
	authors []string
	genres  []string
	titles  []string
}

func NewExtractor(store *catalog.Store) *Extractor {
	var titles []string
	for _, b := range store.Books() {
		titles = append(titles, b.Title)
	}
	return &Extractor{
		store:   store,
		authors: longestFirst(store.Authors()),
		genres:  longestFirst(store.Genres()),
		titles:  longestFirst(titles),
	}
}

// Extract reports every name that occurs in text, case-insensitively. A name nested
// inside a longer one is reported too. Every title found also contributes its
// author and genre.
func (e *Extractor) Extract(text string) Mentions {
	lower := strings.ToLower(text)
	authors := newSet(match(lower, e.authors))
	genres := newSet(match(lower, e.genres))
	titles := newSet(match(lower, e.titles))

	for _, t := range titles.items() {
		b, err := e.store.ByTitle(t)
		if err != nil {
			continue
		}
		authors.add(b.Author)
		genres.add(b.Genre)
	}
	return Mentions{
		Authors: authors.sorted(),
		Genres:  genres.sorted(),
		Titles:  titles.sorted(),
	}
}

func match(lower string, names []string) []string {
	var found []string
	for _, name := range names {
		needle := strings.ToLower(name)
		if needle == "" || !strings.Contains(lower, needle) {
			continue
		}
		found = append(found, name)
	}
	return found
}

func longestFirst(names []string) []string {
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}

type set map[string]struct{}

func newSet(items []string) set {
	s := set{}
	for _, it := range items {
		s.add(it)
	}
	return s
}

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s set) items() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

func (s set) sorted() []string {
	if len(s) == 0 {
		return nil
	}
	out := s.items()
	sort.Strings(out)
	return out
}
