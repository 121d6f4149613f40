package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"walletchat/internal/domain"
)

// Field extraction patterns shared by both classification paths.
var (
	amountRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	currencyRe = regexp.MustCompile(`(?i)\b(ETH|BTC|USDC|ALGO|MATIC|SOL|AVAX|ADA|DOT|LINK|UNI)\b`)
	handleRe   = regexp.MustCompile(`@(\w+)`)
	toRe       = regexp.MustCompile(`(?i)to (\w+)`)
)

const intentSystemPrompt = `Analyze the user message and determine the intent.
If the user wants to send cryptocurrency or money, respond with intent "send".
Otherwise, classify as one of: general, help, balance, history, other.

Also extract any mentioned amount, currency, and recipient if present.
Provide a confidence score between 0 and 1.

Respond with only a JSON object in this format, no prose:
{
  "intent": "send" | "general" | "help" | "balance" | "history" | "other",
  "amount": number (optional, only for send intent),
  "currency": string (optional, only for send intent),
  "recipient": string (optional, only for send intent),
  "confidence": number
}`

// IntentExtractor classifies free text into wallet intents. The completion
// provider is tried first with a strict JSON instruction; any failure falls
// back to local keyword matching, so extraction always returns a value and
// never does I/O on the fallback path.
type IntentExtractor struct {
	provider domain.CompletionProvider // nil disables the remote path
	logger   *slog.Logger
}

// NewIntentExtractor creates an extractor. provider may be nil.
func NewIntentExtractor(provider domain.CompletionProvider, logger *slog.Logger) *IntentExtractor {
	return &IntentExtractor{provider: provider, logger: logger}
}

// Extract classifies text. For send intents, missing fields are filled from
// the text itself: first decimal number, first supported currency symbol
// (default ETH), first @handle or the token after "to " (default Unknown).
func (e *IntentExtractor) Extract(ctx context.Context, text string) domain.Intent {
	intent, err := e.remoteClassify(ctx, text)
	if err != nil {
		if e.provider != nil {
			e.logger.Debug("intent classification fell back to keywords", "error", err)
		}
		intent = keywordClassify(text)
	}

	if intent.Kind == domain.IntentSend {
		fillSendFields(&intent, text)
	}
	return intent
}

func (e *IntentExtractor) remoteClassify(ctx context.Context, text string) (domain.Intent, error) {
	if e.provider == nil {
		return domain.Intent{}, fmt.Errorf("no provider configured")
	}

	raw, err := e.provider.Complete(ctx, domain.CompletionRequest{
		System:      intentSystemPrompt,
		Prompt:      fmt.Sprintf("User message: %q", text),
		Temperature: 0.1,
	})
	if err != nil {
		return domain.Intent{}, err
	}

	var intent domain.Intent
	if err := json.Unmarshal([]byte(stripFences(raw)), &intent); err != nil {
		return domain.Intent{}, fmt.Errorf("parse intent JSON: %w", err)
	}
	if err := validateIntent(intent); err != nil {
		return domain.Intent{}, err
	}
	return intent, nil
}

// keywordClassify is the deterministic local fallback.
func keywordClassify(text string) domain.Intent {
	lower := strings.ToLower(text)
	for _, kw := range []string{"send", "transfer", "pay"} {
		if strings.Contains(lower, kw) {
			return domain.Intent{Kind: domain.IntentSend, Confidence: 0.7}
		}
	}
	return domain.Intent{Kind: domain.IntentGeneral, Confidence: 0.5}
}

func fillSendFields(intent *domain.Intent, text string) {
	if intent.Amount <= 0 {
		intent.Amount = 1
		if m := amountRe.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				intent.Amount = v
			}
		}
	}

	if intent.Currency == "" {
		intent.Currency = domain.DefaultCurrency
		if m := currencyRe.FindStringSubmatch(text); m != nil {
			intent.Currency = strings.ToUpper(m[1])
		}
	} else {
		intent.Currency = domain.NormalizeCurrency(intent.Currency)
	}

	if intent.Recipient == "" {
		intent.Recipient = "Unknown"
		if m := handleRe.FindStringSubmatch(text); m != nil {
			intent.Recipient = m[1]
		} else if m := toRe.FindStringSubmatch(text); m != nil {
			intent.Recipient = m[1]
		}
	}
}

func validateIntent(intent domain.Intent) error {
	switch intent.Kind {
	case domain.IntentSend, domain.IntentGeneral, domain.IntentHelp,
		domain.IntentBalance, domain.IntentHistory, domain.IntentOther:
	default:
		return fmt.Errorf("unknown intent kind %q", intent.Kind)
	}
	if intent.Confidence < 0 || intent.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", intent.Confidence)
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, which some models
// wrap JSON in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
