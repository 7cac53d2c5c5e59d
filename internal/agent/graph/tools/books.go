package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/bookshelf-agent/server/internal/agent/graph/conversations"
	"github.com/bookshelf-agent/server/internal/agent/model"
	"github.com/bookshelf-agent/server/internal/catalog"
)

// ===================================
// Book Tools
// ===================================

const (
	defaultBookLimit = 10
	maxBookLimit     = 20
)

var bookInfoParam = &schema.ParameterInfo{
	Type:     schema.Object,
	Desc:     "The book to start from. Only title is required; author and genre are looked up when omitted.",
	Required: true,
	SubParams: map[string]*schema.ParameterInfo{
		"title":  {Type: schema.String, Desc: "Book title", Required: true},
		"author": {Type: schema.String, Desc: "Book author"},
		"genre":  {Type: schema.String, Desc: "Book genre"},
	},
}

var excludeBooksParam = &schema.ParameterInfo{
	Type:     schema.Array,
	Desc:     "Titles to leave out, e.g. books the user has already read",
	ElemInfo: &schema.ParameterInfo{Type: schema.String},
}

type SearchBooksInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchBooksOutput struct {
	Status
	Query string       `json:"query"`
	Books []model.Book `json:"books"`
	Count int          `json:"count"`
}

type BookDetailsInput struct {
	Title string `json:"title"`
}

type BookDetailsOutput struct {
	Status
	Book model.Book `json:"book"`
}

type RecommendByAuthorInput struct {
	Author       string   `json:"author"`
	ExcludeBooks []string `json:"exclude_books,omitempty"`
}

type RecommendByGenreInput struct {
	Genre        string   `json:"genre"`
	ExcludeBooks []string `json:"exclude_books,omitempty"`
}

type RecommendationOutput struct {
	Status
	Author string `json:"author,omitempty"`
	Genre  string `json:"genre,omitempty"`
	catalog.Recommendation
}

type BookInfoInput struct {
	BookInfo model.BookRef `json:"book_info"`
}

type KnowledgeGraphOutput struct {
	Status
	SourceBook model.Book `json:"source_book"`
	catalog.Recommendation
}

type SimilarBooksOutput struct {
	Status
	SourceBook model.Book `json:"source_book"`
	catalog.Similarity
}

type UserPreferencesInput struct {
	UserID string `json:"user_id,omitempty"`
}

type UserPreferencesOutput struct {
	Status
	UserID      string                `json:"user_id"`
	Preferences model.UserPreferences `json:"preferences"`
}

type UpdatePreferencesInput struct {
	UserID    string `json:"user_id,omitempty"`
	BookTitle string `json:"book_title"`
}

type UpdatePreferencesOutput struct {
	Status
	UserID  string     `json:"user_id"`
	Book    model.Book `json:"book"`
	Message string     `json:"message"`
}

type ReadingTrendsInput struct {
	UserHistory []model.ReadingRecord `json:"user_history"`
}

type ReadingTrendsOutput struct {
	Status
	model.TrendAnalysis
}

// resolveUserID prefers the user the turn runs for over whatever the model passed.
func resolveUserID(ctx context.Context, fromArgs string) string {
	if id, found := model.UserIDFromContext(ctx); found {
		return id
	}
	return conversations.NormalizeUserID(fromArgs)
}

func createSearchBooksTool(store *catalog.Store) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchBooks,
			Desc: "Search the book catalog by keyword. Matches title, author, genre and description case-insensitively. Use it whenever the user mentions a topic, author or title you need to look up.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "Keyword, e.g. 科幻, 刘慈欣 or 三体",
					Required: true,
				},
				"limit": {
					Type: schema.Integer,
					Desc: "Maximum number of books to return (default: 10, max: 20)",
				},
			}),
		},
		func(ctx context.Context, in *SearchBooksInput) (*SearchBooksOutput, error) {
			if strings.TrimSpace(in.Query) == "" {
				return nil, fmt.Errorf("query is required")
			}
			limit := in.Limit
			if limit <= 0 {
				limit = defaultBookLimit
			}
			books := store.Search(in.Query, clampInt(limit, 1, maxBookLimit))
			if books == nil {
				books = []model.Book{}
			}
			return &SearchBooksOutput{Status: succeeded, Query: in.Query, Books: books, Count: len(books)}, nil
		},
	)
}

func createBookDetailsTool(store *catalog.Store) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetBookDetails,
			Desc: "Get the full record of one book by its exact title: author, ISBN, genre, rating, description, publication year and publisher.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"title": {
					Type:     schema.String,
					Desc:     "Exact book title as returned by search_books",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *BookDetailsInput) (*BookDetailsOutput, error) {
			if in.Title == "" {
				return nil, fmt.Errorf("title is required")
			}
			b, err := store.ByTitle(in.Title)
			if err != nil {
				return nil, err
			}
			return &BookDetailsOutput{Status: succeeded, Book: b}, nil
		},
	)
}

func createRecommendByAuthorTool(store *catalog.Store) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRecommendByAuthor,
			Desc: "Recommend other books by the given author.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"author": {
					Type:     schema.String,
					Desc:     "Author name exactly as in the catalog",
					Required: true,
				},
				"exclude_books": excludeBooksParam,
			}),
		},
		func(ctx context.Context, in *RecommendByAuthorInput) (*RecommendationOutput, error) {
			if in.Author == "" {
				return nil, fmt.Errorf("author is required")
			}
			rec, err := store.RecommendByAuthor(in.Author, in.ExcludeBooks)
			if err != nil {
				return nil, err
			}
			return &RecommendationOutput{Status: succeeded, Author: in.Author, Recommendation: rec}, nil
		},
	)
}

func createRecommendByGenreTool(store *catalog.Store) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRecommendByGenre,
			Desc: "Recommend books of the given genre.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"genre": {
					Type:     schema.String,
					Desc:     "Genre exactly as in the catalog, e.g. 科幻, 文学, 魔幻现实主义, 反乌托邦, 推理小说",
					Required: true,
				},
				"exclude_books": excludeBooksParam,
			}),
		},
		func(ctx context.Context, in *RecommendByGenreInput) (*RecommendationOutput, error) {
			if in.Genre == "" {
				return nil, fmt.Errorf("genre is required")
			}
			rec, err := store.RecommendByGenre(in.Genre, in.ExcludeBooks)
			if err != nil {
				return nil, err
			}
			return &RecommendationOutput{Status: succeeded, Genre: in.Genre, Recommendation: rec}, nil
		},
	)
}

func createKnowledgeGraphTool(store *catalog.Store) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRecommendByKnowledgeGraph,
			Desc: "Recommend up to five books related to a book through the knowledge graph: same author, same genre, then related genres. Each recommendation comes with a reason.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"book_info": bookInfoParam,
			}),
		},
		func(ctx context.Context, in *BookInfoInput) (*KnowledgeGraphOutput, error) {
			source, err := store.Resolve(in.BookInfo)
			if err != nil {
				return nil, err
			}
			rec, err := store.RecommendByKnowledgeGraph(in.BookInfo)
			if err != nil {
				return nil, err
			}
			return &KnowledgeGraphOutput{Status: succeeded, SourceBook: source, Recommendation: rec}, nil
		},
	)
}

func createSimilarBooksTool(store *catalog.Store) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetSimilarBooks,
			Desc: "Find books similar to a book, scored by shared author (0.9) and shared genre (0.8).",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"book_info": bookInfoParam,
			}),
		},
		func(ctx context.Context, in *BookInfoInput) (*SimilarBooksOutput, error) {
			source, err := store.Resolve(in.BookInfo)
			if err != nil {
				return nil, err
			}
			sim, err := store.SimilarBooks(in.BookInfo)
			if err != nil {
				return nil, err
			}
			return &SimilarBooksOutput{Status: succeeded, SourceBook: source, Similarity: sim}, nil
		},
	)
}

func createUserPreferencesTool(tracker *conversations.Tracker) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetUserPreferences,
			Desc: "Get the reading profile of the current user derived from the conversation: favourite authors and genres, books mentioned and their average rating.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: schema.String,
					Desc: "User id; defaults to the current user",
				},
			}),
		},
		func(ctx context.Context, in *UserPreferencesInput) (*UserPreferencesOutput, error) {
			userID := resolveUserID(ctx, in.UserID)
			prefs, err := tracker.Preferences(ctx, userID)
			if err != nil {
				return nil, err
			}
			return &UserPreferencesOutput{Status: succeeded, UserID: userID, Preferences: prefs}, nil
		},
	)
}

func createUpdatePreferencesTool(store *catalog.Store, tracker *conversations.Tracker) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolUpdateUserPreferences,
			Desc: "Record that the current user read or liked a book so later recommendations take it into account.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"book_title": {
					Type:     schema.String,
					Desc:     "Exact book title",
					Required: true,
				},
				"user_id": {
					Type: schema.String,
					Desc: "User id; defaults to the current user",
				},
			}),
		},
		func(ctx context.Context, in *UpdatePreferencesInput) (*UpdatePreferencesOutput, error) {
			if in.BookTitle == "" {
				return nil, fmt.Errorf("book_title is required")
			}
			b, err := store.ByTitle(in.BookTitle)
			if err != nil {
				return nil, err
			}
			userID := resolveUserID(ctx, in.UserID)
			if err := tracker.RecordView(ctx, userID, b); err != nil {
				return nil, err
			}
			return &UpdatePreferencesOutput{
				Status:  succeeded,
				UserID:  userID,
				Book:    b,
				Message: fmt.Sprintf("recorded interest in 《%s》", b.Title),
			}, nil
		},
	)
}

func createReadingTrendsTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolAnalyzeReadingTrends,
			Desc: "Analyse a reading history: total books, favourite genre and author, and how reading is distributed across genres and authors.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_history": {
					Type:     schema.Array,
					Desc:     "Books the user has read",
					Required: true,
					ElemInfo: &schema.ParameterInfo{
						Type: schema.Object,
						SubParams: map[string]*schema.ParameterInfo{
							"title":  {Type: schema.String},
							"author": {Type: schema.String},
							"genre":  {Type: schema.String},
						},
					},
				},
			}),
		},
		func(ctx context.Context, in *ReadingTrendsInput) (*ReadingTrendsOutput, error) {
			trends, err := catalog.AnalyzeReadingTrends(in.UserHistory)
			if err != nil {
				return nil, err
			}
			return &ReadingTrendsOutput{Status: succeeded, TrendAnalysis: trends}, nil
		},
	)
}
