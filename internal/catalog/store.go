// Package catalog holds the read-only book store, its derived knowledge graph and
// the recommendation functions that run over it.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bookshelf-agent/server/internal/agent/model"
	errx "github.com/bookshelf-agent/server/internal/core/error"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

//go:embed data/books.yaml
var defaultCatalog []byte

// DefaultSearchLimit is used when a search is issued without a positive limit.
const DefaultSearchLimit = 10

// ErrBookNotFound is matched by every failed title lookup.
var ErrBookNotFound = errx.ErrNotFound

// Data is the on-disk catalog layout.
type Data struct {
	Books         []model.Book        `yaml:"books"`
	AuthorStyles  map[string]string   `yaml:"author_styles"`
	SimilarGenres map[string][]string `yaml:"similar_genres"`
}

// Store is an immutable, ordered set of books. Safe for concurrent reads.
type Store struct {
	books   []model.Book
	byTitle map[string]int
	authors []string // first-seen order
	genres  []string // first-seen order
	graph   *Graph
}

// New builds a store from data. Books with a title already seen are dropped so that
// title stays a unique key; books without a title are rejected.
func New(data Data) (*Store, error) {
	s := &Store{
		books:   make([]model.Book, 0, len(data.Books)),
		byTitle: make(map[string]int, len(data.Books)),
	}
	seenAuthor := map[string]bool{}
	seenGenre := map[string]bool{}
	dropped := 0
	for i, b := range data.Books {
		b.Title = strings.TrimSpace(b.Title)
		if b.Title == "" {
			return nil, errx.Invalid(fmt.Errorf("book at index %d has no title", i))
		}
		if _, dup := s.byTitle[b.Title]; dup {
			dropped++
			continue
		}
		s.byTitle[b.Title] = len(s.books)
		s.books = append(s.books, b)
		if b.Author != "" && !seenAuthor[b.Author] {
			seenAuthor[b.Author] = true
			s.authors = append(s.authors, b.Author)
		}
		if b.Genre != "" && !seenGenre[b.Genre] {
			seenGenre[b.Genre] = true
			s.genres = append(s.genres, b.Genre)
		}
	}
	if dropped > 0 {
		logx.Warn().Int("dropped", dropped).Msg("Duplicate book titles ignored while loading catalog")
	}
	s.graph = buildGraph(s.books, data.AuthorStyles, data.SimilarGenres)
	return s, nil
}

// Load decodes a YAML catalog.
func Load(r io.Reader) (*Store, error) {
	var data Data
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(data)
}

// LoadFile decodes a YAML catalog from disk.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the catalog embedded in the binary.
func Default() (*Store, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// MustDefault is Default for callers that cannot proceed without a catalog.
func MustDefault() *Store {
	s, err := Default()
	if err != nil {
		panic(err)
	}
	return s
}

// Books returns every book in store order. Callers must not modify the slice.
func (s *Store) Books() []model.Book { return s.books }

// Authors returns every author in first-seen order.
func (s *Store) Authors() []string { return s.authors }

// Genres returns every genre in first-seen order.
func (s *Store) Genres() []string { return s.genres }

// Graph returns the derived knowledge graph.
func (s *Store) Graph() *Graph { return s.graph }

// Len reports the number of books.
func (s *Store) Len() int { return len(s.books) }

// Search returns up to limit books whose title, author, genre or description contains
// query, case-insensitively, in store order.
func (s *Store) Search(query string, limit int) []model.Book {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := strings.ToLower(query)
	results := make([]model.Book, 0, limit)
	for _, b := range s.books {
		if len(results) == limit {
			break
		}
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Genre), q) ||
			strings.Contains(strings.ToLower(b.Description), q) {
			results = append(results, b)
		}
	}
	return results
}

// ByTitle looks up a book by exact title.
func (s *Store) ByTitle(title string) (model.Book, error) {
	i, ok := s.byTitle[title]
	if !ok {
		return model.Book{}, errx.NotFound(fmt.Sprintf("book 《%s》 not found", title))
	}
	return s.books[i], nil
}

// ByAuthor returns every book by author in store order.
func (s *Store) ByAuthor(author string) []model.Book {
	return s.filter(func(b model.Book) bool { return b.Author == author })
}

// ByGenre returns every book of genre in store order.
func (s *Store) ByGenre(genre string) []model.Book {
	return s.filter(func(b model.Book) bool { return b.Genre == genre })
}

// Resolve fills in author and genre for a reference that only carries a title.
func (s *Store) Resolve(ref model.BookRef) (model.Book, error) {
	if ref.Author != "" && ref.Genre != "" {
		if b, err := s.ByTitle(ref.Title); err == nil {
			return b, nil
		}
		return model.Book{Title: ref.Title, Author: ref.Author, Genre: ref.Genre}, nil
	}
	if strings.TrimSpace(ref.Title) == "" {
		return model.Book{}, errx.Invalid(fmt.Errorf("book title is required"))
	}
	return s.ByTitle(strings.TrimSpace(ref.Title))
}

func (s *Store) filter(keep func(model.Book) bool) []model.Book {
	var out []model.Book
	for _, b := range s.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
