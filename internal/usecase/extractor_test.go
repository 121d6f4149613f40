package usecase

import (
	"context"
	"errors"
	"testing"

	"walletchat/internal/domain"
	"walletchat/internal/infra/logger"
)

type stubCompletion struct {
	reply string
	err   error
}

func (s *stubCompletion) Complete(context.Context, domain.CompletionRequest) (string, error) {
	return s.reply, s.err
}
func (s *stubCompletion) Name() string { return "stub" }

func TestExtractKeywordFallback(t *testing.T) {
	e := NewIntentExtractor(nil, logger.Discard())

	tests := []struct {
		text       string
		wantKind   domain.IntentKind
		confidence float64
	}{
		{"send some money", domain.IntentSend, 0.7},
		{"TRANSFER funds now", domain.IntentSend, 0.7},
		{"pay the rent", domain.IntentSend, 0.7},
		{"what's the weather", domain.IntentGeneral, 0.5},
		{"show my history", domain.IntentGeneral, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := e.Extract(context.Background(), tt.text)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.Confidence != tt.confidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.confidence)
			}
		})
	}
}

func TestExtractSendFields(t *testing.T) {
	e := NewIntentExtractor(nil, logger.Discard())

	tests := []struct {
		text      string
		amount    float64
		currency  string
		recipient string
	}{
		{"Send 5.5 BTC to @bob_trader", 5.5, "BTC", "bob_trader"},
		{"Send 10 ETH to alice", 10, "ETH", "alice"},
		{"transfer 250 usdc to @carol", 250, "USDC", "carol"},
		{"send crypto", 1, "ETH", "Unknown"},
		{"pay 3 to @dave", 3, "ETH", "dave"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := e.Extract(context.Background(), tt.text)
			if got.Kind != domain.IntentSend {
				t.Fatalf("Kind = %q, want send", got.Kind)
			}
			if got.Amount != tt.amount {
				t.Errorf("Amount = %v, want %v", got.Amount, tt.amount)
			}
			if got.Currency != tt.currency {
				t.Errorf("Currency = %q, want %q", got.Currency, tt.currency)
			}
			if got.Recipient != tt.recipient {
				t.Errorf("Recipient = %q, want %q", got.Recipient, tt.recipient)
			}
		})
	}
}

func TestExtractProviderClassification(t *testing.T) {
	p := &stubCompletion{reply: `{"intent": "balance", "confidence": 0.9}`}
	e := NewIntentExtractor(p, logger.Discard())

	got := e.Extract(context.Background(), "how much do I have")
	if got.Kind != domain.IntentBalance || got.Confidence != 0.9 {
		t.Errorf("intent = %+v, want balance/0.9", got)
	}
}

func TestExtractProviderFencedJSON(t *testing.T) {
	p := &stubCompletion{reply: "```json\n{\"intent\": \"send\", \"amount\": 2, \"currency\": \"SOL\", \"recipient\": \"bob\", \"confidence\": 0.95}\n```"}
	e := NewIntentExtractor(p, logger.Discard())

	got := e.Extract(context.Background(), "send 2 sol to bob")
	if got.Kind != domain.IntentSend || got.Amount != 2 || got.Currency != "SOL" || got.Recipient != "bob" {
		t.Errorf("intent = %+v", got)
	}
}

func TestExtractProviderFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		p    *stubCompletion
	}{
		{"provider error", &stubCompletion{err: errors.New("timeout")}},
		{"malformed json", &stubCompletion{reply: "sorry, I can't do that"}},
		{"unknown kind", &stubCompletion{reply: `{"intent": "dance", "confidence": 0.8}`}},
		{"confidence out of range", &stubCompletion{reply: `{"intent": "general", "confidence": 2}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewIntentExtractor(tt.p, logger.Discard())
			got := e.Extract(context.Background(), "please transfer 1 ETH to @eve")
			if got.Kind != domain.IntentSend || got.Confidence != 0.7 {
				t.Errorf("intent = %+v, want keyword fallback send/0.7", got)
			}
			if got.Recipient != "eve" {
				t.Errorf("Recipient = %q, want eve", got.Recipient)
			}
		})
	}
}

func TestExtractProviderPartialFieldsFilled(t *testing.T) {
	// Provider classifies but omits the fields; regex extraction fills them.
	p := &stubCompletion{reply: `{"intent": "send", "confidence": 0.85}`}
	e := NewIntentExtractor(p, logger.Discard())

	got := e.Extract(context.Background(), "send 7 AVAX to @frank")
	if got.Amount != 7 || got.Currency != "AVAX" || got.Recipient != "frank" {
		t.Errorf("intent = %+v", got)
	}
	if got.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want provider's 0.85", got.Confidence)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
