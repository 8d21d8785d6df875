package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"smart-notes-server/internal/apperr"
	"smart-notes-server/internal/domain"
	"smart-notes-server/pkg/completion"
	"smart-notes-server/pkg/markup"
)

// Completer sends a chat conversation to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, messages []completion.Message) (string, error)
}

type prompt struct {
	system string
	user   func(text string) string
}

func withText(prefix string) func(string) string {
	return func(text string) string { return prefix + "\n\n" + text }
}

var prompts = map[domain.AIAction]prompt{
	domain.AIActionGlossary: {
		system: "You are a helpful assistant that identifies key technical terms and provides concise definitions. " +
			"Return a JSON array of objects with 'term' and 'definition' properties. Limit to the 5-8 most important terms.",
		user: withText("Analyze this text and identify key terms with definitions:"),
	},
	domain.AIActionSummarize: {
		system: "You are a helpful assistant that creates concise, 1-2 sentence summaries.",
		user:   withText("Summarize this text in 1-2 sentences:"),
	},
	domain.AIActionTags: {
		system: "You are a helpful assistant that suggests 3-5 relevant tags. Return a JSON array of tag strings.",
		user:   withText("Suggest 3-5 relevant tags for this text:"),
	},
	domain.AIActionGrammar: {
		system: "You are a grammar checking assistant. Identify grammatical errors and return a JSON array of objects " +
			"with 'error', 'correction', and 'position' (character index) properties. If no errors, return empty array.",
		user: withText("Check for grammar errors in this text:"),
	},
	domain.AIActionTranslate: {
		system: "You are a translation assistant. Translate the text to %s. Return only the translated text.",
		user:   func(text string) string { return text },
	},
	domain.AIActionInsights: {
		system: "You are an AI assistant that provides intelligent insights. Analyze the text and provide 2-3 key " +
			"insights, recommendations, or highlights in a clear format.",
		user: withText("Analyze this text and provide key insights:"),
	},
}

type AIService struct {
	completer Completer
}

func NewAIService(completer Completer) *AIService {
	return &AIService{completer: completer}
}

// Run performs one assistant action on the request text. The action is
// checked before anything is sent upstream.
func (s *AIService) Run(ctx context.Context, req *domain.AIRequest) (*domain.AIResponse, error) {
	p, ok := prompts[req.Action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidAction, req.Action)
	}

	text := strings.TrimSpace(markup.Strip(req.Text))
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", apperr.ErrInvalidRequest)
	}

	system := p.system
	if req.Action == domain.AIActionTranslate {
		lang := strings.TrimSpace(req.TargetLanguage)
		if lang == "" {
			return nil, fmt.Errorf("%w: targetLanguage is required for translate", apperr.ErrInvalidRequest)
		}
		system = fmt.Sprintf(system, lang)
	}

	reply, err := s.completer.Complete(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: system},
		{Role: completion.RoleUser, Content: p.user(text)},
	})
	if err != nil {
		return nil, mapCompletionError(err)
	}

	return &domain.AIResponse{Result: parseResult(req.Action, reply)}, nil
}

func mapCompletionError(err error) error {
	if errors.Is(err, completion.ErrMissingAPIKey) {
		return fmt.Errorf("%w: %w", apperr.ErrConfiguration, err)
	}

	var statusErr *completion.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", apperr.ErrRateLimited, err)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %w", apperr.ErrQuotaExceeded, err)
		}
		slog.Error("AI gateway error", "status", statusErr.StatusCode, "body", statusErr.Body)
	}

	return fmt.Errorf("%w: %w", apperr.ErrUpstream, err)
}

// parseResult decodes structured actions, falling back to the raw reply when
// the model did not return valid JSON.
func parseResult(action domain.AIAction, reply string) any {
	var err error
	switch action {
	case domain.AIActionGlossary:
		var entries []domain.GlossaryEntry
		if err = json.Unmarshal([]byte(stripFence(reply)), &entries); err == nil {
			return entries
		}
	case domain.AIActionTags:
		var tags []string
		if err = json.Unmarshal([]byte(stripFence(reply)), &tags); err == nil {
			return tags
		}
	case domain.AIActionGrammar:
		var issues []domain.GrammarIssue
		if err = json.Unmarshal([]byte(stripFence(reply)), &issues); err == nil {
			return issues
		}
	default:
		return reply
	}

	slog.Debug("AI reply is not valid JSON, returning raw text", "action", action, "error", err)
	return reply
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
