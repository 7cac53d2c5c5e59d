package model

// Book is one catalog record. Title is the unique key.
type Book struct {
	Title           string  `json:"title" yaml:"title"`
	Author          string  `json:"author" yaml:"author"`
	ISBN            string  `json:"isbn,omitempty" yaml:"isbn"`
	Genre           string  `json:"genre" yaml:"genre"`
	Rating          float64 `json:"rating" yaml:"rating"`
	Description     string  `json:"description,omitempty" yaml:"description"`
	PublicationYear int     `json:"publication_year,omitempty" yaml:"publication_year"`
	Publisher       string  `json:"publisher,omitempty" yaml:"publisher"`
}

// BookRef identifies a book the way a model usually passes it to a tool.
// Author and Genre may be empty; they are resolved from the catalog by title.
type BookRef struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

// ReadingRecord is one entry of a reading history passed to trend analysis.
type ReadingRecord struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

// SimilarBook is a candidate produced by similarity search.
type SimilarBook struct {
	Book   Book    `json:"book"`
	Reason string  `json:"similarity_reason"`
	Score  float64 `json:"similarity_score"`
}

// TrendAnalysis summarises a reading history.
type TrendAnalysis struct {
	TotalBooks         int            `json:"total_books"`
	FavoriteGenre      string         `json:"favorite_genre"`
	FavoriteAuthor     string         `json:"favorite_author"`
	GenreDistribution  map[string]int `json:"genre_distribution"`
	AuthorDistribution map[string]int `json:"author_distribution"`
}

// UserPreferences is derived from a user's retained session history.
type UserPreferences struct {
	FavoriteGenres  []string `json:"favorite_genres"`
	FavoriteAuthors []string `json:"favorite_authors"`
	ReadingHistory  []string `json:"reading_history"`
	PreferredRating float64  `json:"preferred_rating,omitempty"`
}
