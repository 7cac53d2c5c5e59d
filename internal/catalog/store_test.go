package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bookshelf-agent/server/internal/agent/model"
	logx "github.com/bookshelf-agent/server/pkg/logger"
)

func TestMain(m *testing.M) {
	logx.Silence()
	os.Exit(m.Run())
}

func mustDefault(t *testing.T) *Store {
	t.Helper()
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return s
}

func TestDefaultCatalog(t *testing.T) {
	s := mustDefault(t)
	if s.Len() != 10 {
		t.Fatalf("expected 10 books, got %d", s.Len())
	}
	if got := len(s.Authors()); got != 5 {
		t.Fatalf("expected 5 authors, got %d", got)
	}
	if s.Authors()[0] != "刘慈欣" {
		t.Fatalf("authors not in first-seen order: %v", s.Authors())
	}
}

func TestSearch(t *testing.T) {
	s := mustDefault(t)

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"author limited", "刘慈欣", 2, []string{"三体", "流浪地球"}},
		{"genre", "反乌托邦", 10, []string{"1984", "动物农场"}},
		{"case insensitive description", "极权", 5, []string{"1984"}},
		{"no match", "哈利波特", 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Search(tt.query, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i, b := range got {
				if b.Title != tt.want[i] {
					t.Errorf("result %d: got %q, want %q", i, b.Title, tt.want[i])
				}
			}
		})
	}
}

func TestSearchIgnoresCase(t *testing.T) {
	s, err := New(Data{Books: []model.Book{{Title: "Dune", Author: "Frank Herbert", Genre: "SF"}}})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Search("dUNE", 0); len(got) != 1 {
		t.Fatalf("expected case-insensitive match, got %v", got)
	}
}

func TestByTitleNotFound(t *testing.T) {
	s := mustDefault(t)
	_, err := s.ByTitle("不存在的书")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "不存在的书") {
		t.Fatalf("error should name the title: %v", err)
	}
}

func TestNewDeduplicatesTitles(t *testing.T) {
	s, err := New(Data{Books: []model.Book{
		{Title: "A", Author: "X", Genre: "G"},
		{Title: "A", Author: "Y", Genre: "H"},
		{Title: "B", Author: "X", Genre: "G"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 books after dedupe, got %d", s.Len())
	}
	b, _ := s.ByTitle("A")
	if b.Author != "X" {
		t.Fatalf("first occurrence should win, got author %q", b.Author)
	}
	if _, ok := s.Graph().Authors["Y"]; ok {
		t.Fatal("dropped book leaked into the graph")
	}
}

func TestNewRejectsMissingTitle(t *testing.T) {
	if _, err := New(Data{Books: []model.Book{{Author: "X"}}}); err == nil {
		t.Fatal("expected error for untitled book")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.yaml")
	data := "books:\n  - title: T\n    author: A\n    genre: G\n    rating: 7.5\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	b, err := s.ByTitle("T")
	if err != nil || b.Rating != 7.5 {
		t.Fatalf("unexpected book %+v, err %v", b, err)
	}
}

func TestGraphOnlyMentionsKnownEntities(t *testing.T) {
	s, err := New(Data{
		Books: []model.Book{
			{Title: "A", Author: "X", Genre: "G"},
			{Title: "B", Author: "Y", Genre: "H"},
		},
		AuthorStyles:  map[string]string{"X": "terse", "Z": "ghost"},
		SimilarGenres: map[string][]string{"G": {"H", "Nope", "G"}, "Missing": {"G"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	g := s.Graph()
	if len(g.Authors) != 2 || len(g.Genres) != 2 {
		t.Fatalf("unexpected graph size: %d authors, %d genres", len(g.Authors), len(g.Genres))
	}
	if got := g.SimilarGenres("G"); len(got) != 1 || got[0] != "H" {
		t.Fatalf("similar genres should be filtered to known keys, got %v", got)
	}
	if g.Style("X") != "terse" {
		t.Fatalf("style not attached: %q", g.Style("X"))
	}
}
