package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Hints is the JSON shape the oracle returns. Every field is a free-form
// hint; the parser re-resolves each one against the catalog.
type Hints struct {
	Category    string            `json:"category"`
	Location    string            `json:"location"`
	Transaction string            `json:"transaction"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Empty reports whether no hint was produced at all.
func (h *Hints) Empty() bool {
	return h.Category == "" && h.Location == "" && h.Transaction == "" && len(h.Attributes) == 0
}

// shortHintPrompt is the tier-3 system prompt. Kept deliberately tiny; the
// dialect equivalences cover the most common colloquial Syrian forms.
const shortHintPrompt = `Extract category, location, transaction from a classifieds query.
Reply only JSON: {"category":"","location":"","transaction":""}.
Dialect: بدي=want, وين=where, شو=what, كتير=very.`

// fullHintPrompt is the tier-4 system prompt; same schema plus attributes.
const fullHintPrompt = `Extract search fields from a classifieds query.
Reply only JSON: {"category":"","location":"","transaction":"","attributes":{}}.
attributes may carry year, rooms, price, area as plain strings.
Dialect: بدي=want, وين=where, شو=what, كتير=very.`

const validatorPrompt = `Answer strictly "yes" or "no".`

// HintExtractor issues the tier-3/tier-4 prompts and the category
// validator call.
type HintExtractor struct {
	client Client
}

// NewHintExtractor wraps a completion client.
func NewHintExtractor(client Client) *HintExtractor {
	return &HintExtractor{client: client}
}

// ShortHints runs the tier-3 prompt.
func (e *HintExtractor) ShortHints(ctx context.Context, utterance string) (*Hints, Usage, error) {
	return e.extract(ctx, shortHintPrompt, utterance)
}

// FullHints runs the tier-4 prompt.
func (e *HintExtractor) FullHints(ctx context.Context, utterance string) (*Hints, Usage, error) {
	return e.extract(ctx, fullHintPrompt, utterance)
}

func (e *HintExtractor) extract(ctx context.Context, system, utterance string) (*Hints, Usage, error) {
	raw, usage, err := e.client.Complete(ctx, system, utterance)
	if err != nil {
		return nil, usage, err
	}

	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return nil, usage, fmt.Errorf("no JSON object in completion: %q", truncate(raw, 120))
	}

	var hints Hints
	if err := json.Unmarshal([]byte(jsonStr), &hints); err != nil {
		return nil, usage, fmt.Errorf("parse hints: %w", err)
	}
	return &hints, usage, nil
}

// ValidateCategory asks the oracle whether a matched category fits the
// utterance. Used by the retrieval confidence gate.
func (e *HintExtractor) ValidateCategory(ctx context.Context, utterance, categoryName string) (bool, error) {
	user := fmt.Sprintf("Is the category %q appropriate for the query %q?", categoryName, utterance)
	raw, _, err := e.client.Complete(ctx, validatorPrompt, user)
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(answer, "yes"), nil
}

// Model exposes the underlying model identifier.
func (e *HintExtractor) Model() string { return e.client.Model() }

// ExtractJSON finds the first balanced JSON object in a completion,
// tolerating markdown fences and prose around it.
func ExtractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
