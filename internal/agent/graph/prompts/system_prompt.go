package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Kind selects which system prompt to render.
type Kind string

const (
	KindAssistant Kind = "assistant"
	KindBook      Kind = "book"
)

//go:embed template/assistant_prompt.txt
var assistantSystemPrompt string

//go:embed template/book_prompt.txt
var bookSystemPrompt string

//go:embed template/preference_hint.txt
var preferenceHintPrompt string

// RenderSystem renders the system prompt for kind via the Eino prompt component,
// listing the tools bound to the model.
func RenderSystem(ctx context.Context, kind Kind, tools []*schema.ToolInfo) (string, error) {
	var content string
	switch kind {
	case KindAssistant:
		content = assistantSystemPrompt
	case KindBook:
		content = bookSystemPrompt
	default:
		return "", fmt.Errorf("system prompt render: unknown kind %q", kind)
	}

	type toolLine struct{ Name, Desc string }
	lines := make([]toolLine, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		lines = append(lines, toolLine{Name: t.Name, Desc: t.Desc})
	}

	return render(ctx, "system prompt render", content, map[string]any{
		"Tools": lines,
		"Date":  time.Now().Format("2006-01-02"),
	})
}

// RenderPreferenceHint renders the preference instruction block appended after the
// system prompt. Either list may be empty, not both.
func RenderPreferenceHint(ctx context.Context, authors, genres []string) (string, error) {
	if len(authors) == 0 && len(genres) == 0 {
		return "", fmt.Errorf("preference hint render: no preferences")
	}
	return render(ctx, "preference hint render", preferenceHintPrompt, map[string]any{
		"Authors": strings.Join(authors, ", "),
		"Genres":  strings.Join(genres, ", "),
	})
}

// render formats a single system message so prompt callbacks fire.
func render(ctx context.Context, op, content string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(content),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s: empty result", op)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}
