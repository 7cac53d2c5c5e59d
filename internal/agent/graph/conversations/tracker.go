package conversations

import (
	"context"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/bookshelf-agent/server/internal/agent/graph/prompts"
	"github.com/bookshelf-agent/server/internal/agent/model"
	"github.com/bookshelf-agent/server/internal/catalog"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

// topPreferences is how many authors and genres a hint or profile names.
const topPreferences = 3

// Tracker records conversation turns per user and derives reading preferences from them.
type Tracker struct {
	sessionRepo  model.SessionRepository
	store        *catalog.Store
	extractor    *Extractor
	recentWindow int
	now          func() time.Time
}

func NewTracker(sessionRepo model.SessionRepository, store *catalog.Store, config model.SessionConfig) *Tracker {
	window := config.RecentWindow
	if window <= 0 {
		window = model.DefaultRecentWindow
	}
	return &Tracker{
		sessionRepo:  sessionRepo,
		store:        store,
		extractor:    NewExtractor(store),
		recentWindow: window,
		now:          time.Now,
	}
}

// NormalizeUserID maps blank ids to the shared anonymous session.
func NormalizeUserID(userID string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return id
	}
	return model.AnonymousUserID
}

// =========== Recording ===========

func (t *Tracker) RecordUserMessage(ctx context.Context, userID, text string) (model.ConversationEntry, error) {
	userID = NormalizeUserID(userID)
	m := t.extractor.Extract(text)
	entry := model.ConversationEntry{
		Role:      model.RoleUser,
		Content:   text,
		Authors:   m.Authors,
		Genres:    m.Genres,
		Titles:    m.Titles,
		CreatedAt: t.now(),
	}
	if err := t.sessionRepo.Append(ctx, userID, entry); err != nil {
		return model.ConversationEntry{}, err
	}
	if !m.Empty() {
		logx.Debug().
			Str("userID", userID).
			Strs("authors", m.Authors).
			Strs("genres", m.Genres).
			Strs("titles", m.Titles).
			Msg("recorded user mentions")
	}
	return entry, nil
}

func (t *Tracker) RecordAssistantMessage(ctx context.Context, userID, text string) error {
	return t.sessionRepo.Append(ctx, NormalizeUserID(userID), model.ConversationEntry{
		Role:      model.RoleAssistant,
		Content:   text,
		CreatedAt: t.now(),
	})
}

// RecordView stores an explicit interest in book as a user entry.
func (t *Tracker) RecordView(ctx context.Context, userID string, book model.Book) error {
	entry := model.ConversationEntry{
		Role:      model.RoleUser,
		Content:   "viewed 《" + book.Title + "》",
		Titles:    nonEmpty(book.Title),
		Authors:   nonEmpty(book.Author),
		Genres:    nonEmpty(book.Genre),
		CreatedAt: t.now(),
	}
	return t.sessionRepo.Append(ctx, NormalizeUserID(userID), entry)
}

func (t *Tracker) History(ctx context.Context, userID string) ([]model.ConversationEntry, error) {
	return t.sessionRepo.History(ctx, NormalizeUserID(userID))
}

// =========== Preferences ===========

// BuildPreferenceHint summarises the most mentioned authors and genres over the
// last few user entries. ok is false when nothing has been mentioned yet.
func (t *Tracker) BuildPreferenceHint(ctx context.Context, userID string) (hint string, ok bool, err error) {
	history, err := t.History(ctx, userID)
	if err != nil {
		return "", false, err
	}
	recent := trimTail(userEntries(history), t.recentWindow)

	authors, genres := catalog.NewTally(), catalog.NewTally()
	for _, e := range recent {
		authors.Add(e.Authors...)
		genres.Add(e.Genres...)
	}
	if authors.Len() == 0 && genres.Len() == 0 {
		return "", false, nil
	}

	hint, err = prompts.RenderPreferenceHint(ctx, authors.Top(topPreferences), genres.Top(topPreferences))
	if err != nil {
		return "", false, err
	}
	return hint, true, nil
}

// Preferences builds a profile over the whole retained history.
func (t *Tracker) Preferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	history, err := t.History(ctx, userID)
	if err != nil {
		return model.UserPreferences{}, err
	}

	authors, genres, titles := catalog.NewTally(), catalog.NewTally(), catalog.NewTally()
	for _, e := range userEntries(history) {
		authors.Add(e.Authors...)
		genres.Add(e.Genres...)
		titles.Add(e.Titles...)
	}

	prefs := model.UserPreferences{
		FavoriteAuthors: authors.Top(topPreferences),
		FavoriteGenres:  genres.Top(topPreferences),
		ReadingHistory:  titles.Top(-1),
	}

	var ratings stats.Float64Data
	for _, title := range prefs.ReadingHistory {
		if b, err := t.store.ByTitle(title); err == nil && b.Rating > 0 {
			ratings = append(ratings, b.Rating)
		}
	}
	if len(ratings) > 0 {
		mean, _ := ratings.Mean()
		prefs.PreferredRating, _ = stats.Round(mean, 1)
	}
	return prefs, nil
}

// ====================== Helper function ======================

func userEntries(history []model.ConversationEntry) []model.ConversationEntry {
	out := make([]model.ConversationEntry, 0, len(history))
	for _, e := range history {
		if e.Role == model.RoleUser {
			out = append(out, e)
		}
	}
	return out
}

func trimTail(entries []model.ConversationEntry, n int) []model.ConversationEntry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}
