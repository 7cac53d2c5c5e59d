package tools

// General assistant tools.
const (
	ToolCalculator     = "calculator"
	ToolWebSearch      = "web_search"
	ToolReadFile       = "read_file"
	ToolWriteFile      = "write_file"
	ToolListFiles      = "list_files"
	ToolAnalyzeData    = "analyze_data"
	ToolGetCurrentTime = "get_current_time"
	ToolFormatTime     = "format_time"
)

// Book agent tools.
const (
	ToolSearchBooks               = "search_books"
	ToolGetBookDetails            = "get_book_details"
	ToolRecommendByAuthor         = "recommend_by_author"
	ToolRecommendByGenre          = "recommend_by_genre"
	ToolRecommendByKnowledgeGraph = "recommend_by_knowledge_graph"
	ToolGetUserPreferences        = "get_user_preferences"
	ToolUpdateUserPreferences     = "update_user_preferences"
	ToolAnalyzeReadingTrends      = "analyze_reading_trends"
	ToolGetSimilarBooks           = "get_similar_books"
)
