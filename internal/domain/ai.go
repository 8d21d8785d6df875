package domain

type AIAction string

const (
	AIActionGlossary  AIAction = "glossary"
	AIActionSummarize AIAction = "summarize"
	AIActionTags      AIAction = "tags"
	AIActionGrammar   AIAction = "grammar"
	AIActionTranslate AIAction = "translate"
	AIActionInsights  AIAction = "insights"
)

type AIRequest struct {
	Text           string   `json:"text"`
	Action         AIAction `json:"action" validate:"required"`
	TargetLanguage string   `json:"targetLanguage,omitempty"`
}

// AIResponse.Result is a string, []string, []GlossaryEntry or []GrammarIssue
// depending on the action and on whether the model output parsed.
type AIResponse struct {
	Result any `json:"result"`
}

type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type GrammarIssue struct {
	Error      string `json:"error"`
	Correction string `json:"correction"`
	Position   int    `json:"position"`
}
