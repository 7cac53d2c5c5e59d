package catalog

import "github.com/bookshelf-agent/server/internal/agent/model"

// AuthorNode describes an author in the knowledge graph.
type AuthorNode struct {
	Genres []string `json:"genres"`
	Books  []string `json:"books"`
	Style  string   `json:"style,omitempty"`
}

// GenreNode describes a genre in the knowledge graph.
type GenreNode struct {
	Authors       []string `json:"authors"`
	SimilarGenres []string `json:"similar_genres"`
}

// Graph is a read-only adjacency view derived from the book set.
// Every author, genre and title it mentions exists in at least one book.
type Graph struct {
	Authors map[string]*AuthorNode `json:"authors"`
	Genres  map[string]*GenreNode  `json:"genres"`
}

// SimilarGenres returns the genres related to genre, or nil.
func (g *Graph) SimilarGenres(genre string) []string {
	if n, ok := g.Genres[genre]; ok {
		return n.SimilarGenres
	}
	return nil
}

// Style returns the style label of an author, if known.
func (g *Graph) Style(author string) string {
	if n, ok := g.Authors[author]; ok {
		return n.Style
	}
	return ""
}

func buildGraph(books []model.Book, styles map[string]string, similar map[string][]string) *Graph {
	g := &Graph{
		Authors: map[string]*AuthorNode{},
		Genres:  map[string]*GenreNode{},
	}
	for _, b := range books {
		if b.Author != "" {
			a, ok := g.Authors[b.Author]
			if !ok {
				a = &AuthorNode{Style: styles[b.Author]}
				g.Authors[b.Author] = a
			}
			a.Books = append(a.Books, b.Title)
			if b.Genre != "" {
				a.Genres = appendUnique(a.Genres, b.Genre)
			}
		}
		if b.Genre != "" {
			n, ok := g.Genres[b.Genre]
			if !ok {
				n = &GenreNode{}
				g.Genres[b.Genre] = n
			}
			if b.Author != "" {
				n.Authors = appendUnique(n.Authors, b.Author)
			}
		}
	}
	for genre, n := range g.Genres {
		for _, s := range similar[genre] {
			if _, known := g.Genres[s]; !known || s == genre {
				continue
			}
			n.SimilarGenres = appendUnique(n.SimilarGenres, s)
		}
	}
	return g
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
