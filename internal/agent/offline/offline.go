// Package offline answers book questions by keyword routing, without a chat model.
package offline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bookshelf-agent/server/internal/agent/graph/conversations"
	"github.com/bookshelf-agent/server/internal/agent/model"
	"github.com/bookshelf-agent/server/internal/catalog"
	errx "github.com/bookshelf-agent/server/internal/core/error"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

const searchLimit = 5

type intent int

const (
	intentHelp intent = iota
	intentSearch
	intentSimilar
	intentGenre
	intentDetails
)

var (
	searchWords    = []string{"搜索", "查找", "search", "find"}
	recommendWords = []string{"推荐", "recommend"}
	similarWords   = []string{"相似", "similar", "like"}
	genreWords     = []string{"类型", "genre"}
	detailWords    = []string{"详细信息", "详情", "信息", "details", "info"}

	// fillers are removed together with the keywords when no 《title》 is given
	fillers = []string{"的", "图书", "books", "book", "by", "of", "to", "for", "me", "please"}
)

const helpText = `我是图书推荐助手，可以帮您：
1. 搜索图书：'搜索《书名》' / 'search 三体'
2. 推荐相似图书：'推荐《书名》的相似图书' / 'recommend books similar to 《三体》'
3. 类型推荐：'推荐科幻类型图书' / 'recommend 科幻 genre'
4. 查看详情：'《书名》的详细信息' / 'details 《三体》'`

// Agent is the model-free book assistant. A nil tracker disables session recording.
type Agent struct {
	store   *catalog.Store
	tracker *conversations.Tracker
}

func New(store *catalog.Store, tracker *conversations.Tracker) *Agent {
	return &Agent{store: store, tracker: tracker}
}

func (a *Agent) Chat(ctx context.Context, userID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errx.Invalid(errors.New("message is empty"))
	}
	userID = conversations.NormalizeUserID(userID)

	in := classify(message)
	var response string
	switch in {
	case intentSearch:
		response = a.search(message)
	case intentSimilar:
		response = a.similar(message)
	case intentGenre:
		response = a.genre(message)
	case intentDetails:
		response = a.details(message)
	default:
		response = helpText
	}
	logx.Debug().Str("user_id", userID).Int("intent", int(in)).Msg("offline reply")

	a.record(ctx, userID, message, response)
	return response, nil
}

func classify(message string) intent {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, searchWords):
		return intentSearch
	case containsAny(lower, recommendWords) && containsAny(lower, similarWords):
		return intentSimilar
	case containsAny(lower, recommendWords) && containsAny(lower, genreWords):
		return intentGenre
	case containsAny(lower, detailWords):
		return intentDetails
	}
	return intentHelp
}

func (a *Agent) search(message string) string {
	query := subject(message, searchWords)
	books := a.store.Search(query, searchLimit)
	if len(books) == 0 {
		return "抱歉，没有找到相关图书。"
	}

	var sb strings.Builder
	sb.WriteString("找到以下图书：\n")
	for i, b := range books {
		fmt.Fprintf(&sb, "%d. 《%s》- %s (%s)\n", i+1, b.Title, b.Author, b.Genre)
		fmt.Fprintf(&sb, "   评分: %.1f/10\n", b.Rating)
		fmt.Fprintf(&sb, "   描述: %s\n\n", b.Description)
	}
	return sb.String()
}

func (a *Agent) similar(message string) string {
	title := subject(message, recommendWords, similarWords)
	book, err := a.store.ByTitle(title)
	if err != nil {
		return fmt.Sprintf("抱歉，没有找到图书《%s》。", title)
	}

	rec, err := a.store.RecommendByKnowledgeGraph(model.BookRef{Title: book.Title, Author: book.Author, Genre: book.Genre})
	if err != nil || len(rec.Books) == 0 {
		return "抱歉，无法找到相似图书。"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "基于《%s》，我推荐以下图书：\n", book.Title)
	for i, b := range rec.Books {
		fmt.Fprintf(&sb, "%d. 《%s》- %s (%s)\n", i+1, b.Title, b.Author, b.Genre)
		fmt.Fprintf(&sb, "   评分: %.1f/10\n\n", b.Rating)
	}
	if len(rec.Reasons) > 0 {
		fmt.Fprintf(&sb, "推荐理由: %s\n", strings.Join(rec.Reasons, "；"))
	}
	return sb.String()
}

func (a *Agent) genre(message string) string {
	genre := a.knownGenre(message)
	if genre == "" {
		genre = subject(message, recommendWords, genreWords)
	}

	rec, err := a.store.RecommendByGenre(genre, nil)
	if err != nil || len(rec.Books) == 0 {
		return fmt.Sprintf("抱歉，没有找到%s类型的图书。", genre)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "推荐%s类型的图书：\n", genre)
	for i, b := range rec.Books {
		fmt.Fprintf(&sb, "%d. 《%s》- %s\n", i+1, b.Title, b.Author)
		fmt.Fprintf(&sb, "   评分: %.1f/10\n", b.Rating)
		fmt.Fprintf(&sb, "   描述: %s\n\n", b.Description)
	}
	return sb.String()
}

func (a *Agent) details(message string) string {
	title := subject(message, detailWords)
	b, err := a.store.ByTitle(title)
	if err != nil {
		return fmt.Sprintf("抱歉，没有找到图书《%s》。", title)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "《%s》详细信息：\n", b.Title)
	fmt.Fprintf(&sb, "作者: %s\n", b.Author)
	fmt.Fprintf(&sb, "类型: %s\n", b.Genre)
	fmt.Fprintf(&sb, "评分: %.1f/10\n", b.Rating)
	fmt.Fprintf(&sb, "出版年份: %d\n", b.PublicationYear)
	fmt.Fprintf(&sb, "出版社: %s\n", b.Publisher)
	fmt.Fprintf(&sb, "ISBN: %s\n", b.ISBN)
	fmt.Fprintf(&sb, "描述: %s\n", b.Description)
	return sb.String()
}

// knownGenre returns the longest catalog genre named in message.
func (a *Agent) knownGenre(message string) string {
	lower := strings.ToLower(message)
	best := ""
	for _, g := range a.store.Genres() {
		if strings.Contains(lower, strings.ToLower(g)) && len([]rune(g)) > len([]rune(best)) {
			best = g
		}
	}
	return best
}

func (a *Agent) record(ctx context.Context, userID, message, response string) {
	if a.tracker == nil {
		return
	}
	if _, err := a.tracker.RecordUserMessage(ctx, userID, message); err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("Failed to record user message")
		return
	}
	if err := a.tracker.RecordAssistantMessage(ctx, userID, response); err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("Failed to record assistant message")
	}
}

// subject extracts what a command is about: the first 《quoted》 title, or the
// message with the command keywords and filler words removed.
func subject(message string, keywordSets ...[]string) string {
	if title, ok := quotedTitle(message); ok {
		return title
	}

	s := message
	for _, set := range keywordSets {
		s = removeFold(s, set)
	}
	s = strings.NewReplacer("《", "", "》", "").Replace(s)

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !containsWord(fillers, strings.ToLower(w)) {
			kept = append(kept, w)
		}
	}
	s = strings.Join(kept, " ")
	return strings.TrimSpace(strings.Trim(s, "的：:，,。.?？!！"))
}

func quotedTitle(s string) (string, bool) {
	start := strings.Index(s, "《")
	if start < 0 {
		return "", false
	}
	rest := s[start+len("《"):]
	end := strings.Index(rest, "》")
	if end < 0 {
		return "", false
	}
	title := strings.TrimSpace(rest[:end])
	return title, title != ""
}

// removeFold deletes every case-insensitive occurrence of the words from s.
func removeFold(s string, words []string) string {
	for _, w := range words {
		for {
			i := strings.Index(strings.ToLower(s), strings.ToLower(w))
			if i < 0 {
				break
			}
			s = s[:i] + " " + s[i+len(w):]
		}
	}
	return s
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
