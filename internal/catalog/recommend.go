package catalog

import (
	"fmt"
	"sort"

	"github.com/bookshelf-agent/server/internal/agent/model"
	errx "github.com/bookshelf-agent/server/internal/core/error"
)

const (
	// MaxRecommendations caps knowledge-graph and similarity results.
	MaxRecommendations = 5

	sameAuthorLimit  = 2
	sameGenreLimit   = 2
	perSimilarGenre  = 1
	sameAuthorScore  = 0.9
	sameGenreScore   = 0.8
	sameAuthorReason = "same author"
	sameGenreReason  = "same genre"
)

// Recommendation is the outcome of one recommendation query.
// Reason summarises single-strategy queries; Reasons lists the stages of a multi-stage one.
type Recommendation struct {
	Books   []model.Book `json:"recommendations"`
	Reason  string       `json:"reason,omitempty"`
	Reasons []string     `json:"reasons,omitempty"`
	Count   int          `json:"count"`
}

// Similarity is the outcome of SimilarBooks.
type Similarity struct {
	Books []model.SimilarBook `json:"similar_books"`
	Count int                 `json:"count"`
}

// RecommendByAuthor returns the author's books minus excluded titles, in store order.
func (s *Store) RecommendByAuthor(author string, exclude []string) (Recommendation, error) {
	if _, ok := s.graph.Authors[author]; !ok {
		return Recommendation{}, errx.NotFound(fmt.Sprintf("author %s not found", author))
	}
	books := without(s.ByAuthor(author), exclude)
	return Recommendation{
		Books:  books,
		Reason: fmt.Sprintf("other works by %s", author),
		Count:  len(books),
	}, nil
}

// RecommendByGenre returns the genre's books minus excluded titles, in store order.
func (s *Store) RecommendByGenre(genre string, exclude []string) (Recommendation, error) {
	if _, ok := s.graph.Genres[genre]; !ok {
		return Recommendation{}, errx.NotFound(fmt.Sprintf("genre %s not found", genre))
	}
	books := without(s.ByGenre(genre), exclude)
	return Recommendation{
		Books:  books,
		Reason: fmt.Sprintf("more books in genre %s", genre),
		Count:  len(books),
	}, nil
}

// RecommendByKnowledgeGraph walks the graph outward from ref: same author, same genre,
// then one book per related genre. The seed book is never returned and titles are unique.
// Each stage that yields a candidate appends one reason, so Reasons describes stages
// and is not aligned with Books. Count is the number of unique candidates before
// truncation to MaxRecommendations.
func (s *Store) RecommendByKnowledgeGraph(ref model.BookRef) (Recommendation, error) {
	book, err := s.Resolve(ref)
	if err != nil {
		return Recommendation{}, err
	}

	var (
		books   []model.Book
		reasons []string
	)
	stage := func(candidates []model.Book, limit int, reason string) {
		n := 0
		for _, c := range candidates {
			if n == limit {
				break
			}
			if c.Title == book.Title {
				continue
			}
			books = append(books, c)
			n++
		}
		if n > 0 {
			reasons = append(reasons, reason)
		}
	}

	authorReason := fmt.Sprintf("other works by %s", book.Author)
	if style := s.graph.Style(book.Author); style != "" {
		authorReason = fmt.Sprintf("other works by %s (%s)", book.Author, style)
	}
	stage(s.ByAuthor(book.Author), sameAuthorLimit, authorReason)
	stage(s.ByGenre(book.Genre), sameGenreLimit, fmt.Sprintf("more books in genre %s", book.Genre))
	for _, related := range s.graph.SimilarGenres(book.Genre) {
		stage(s.ByGenre(related), perSimilarGenre, fmt.Sprintf("books from related genre %s", related))
	}

	seen := make(map[string]bool, len(books))
	var unique []model.Book
	for _, b := range books {
		if seen[b.Title] {
			continue
		}
		seen[b.Title] = true
		unique = append(unique, b)
	}

	count := len(unique)
	if count > MaxRecommendations {
		unique = unique[:MaxRecommendations]
	}
	return Recommendation{Books: unique, Reasons: reasons, Count: count}, nil
}

// SimilarBooks scores same-author books above same-genre ones. A book sharing both
// author and genre appears once per match. Count is the candidate total before truncation.
func (s *Store) SimilarBooks(ref model.BookRef) (Similarity, error) {
	book, err := s.Resolve(ref)
	if err != nil {
		return Similarity{}, err
	}

	var out []model.SimilarBook
	for _, b := range s.ByAuthor(book.Author) {
		if b.Title != book.Title {
			out = append(out, model.SimilarBook{Book: b, Reason: sameAuthorReason, Score: sameAuthorScore})
		}
	}
	for _, b := range s.ByGenre(book.Genre) {
		if b.Title != book.Title {
			out = append(out, model.SimilarBook{Book: b, Reason: sameGenreReason, Score: sameGenreScore})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	count := len(out)
	if count > MaxRecommendations {
		out = out[:MaxRecommendations]
	}
	return Similarity{Books: out, Count: count}, nil
}

func without(books []model.Book, exclude []string) []model.Book {
	if len(exclude) == 0 {
		return books
	}
	skip := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		skip[t] = true
	}
	out := make([]model.Book, 0, len(books))
	for _, b := range books {
		if !skip[b.Title] {
			out = append(out, b)
		}
	}
	return out
}
