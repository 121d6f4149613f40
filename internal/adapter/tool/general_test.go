package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"walletchat/internal/domain"
	"walletchat/internal/infra/logger"
)

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Complete(context.Context, domain.CompletionRequest) (string, error) {
	return f.reply, f.err
}
func (f *fakeProvider) Name() string { return "fake" }

func TestGeneralToolUsesProvider(t *testing.T) {
	gt := NewGeneralResponseTool(&fakeProvider{reply: "Sure, happy to help."}, "", logger.Discard())

	res, err := gt.Execute(context.Background(), json.RawMessage(`{"message": "hello"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Content != "Sure, happy to help." {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestGeneralToolFallsBackOnProviderError(t *testing.T) {
	gt := NewGeneralResponseTool(&fakeProvider{err: errors.New("down")}, "", logger.Discard())

	res, err := gt.Execute(context.Background(), json.RawMessage(`{"message": "what is my balance?"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("provider failure must not surface as error: %s", res.Content)
	}
	if !strings.Contains(res.Content, "wallet balance") {
		t.Errorf("Content = %q, want balance canned response", res.Content)
	}
}

func TestCannedResponses(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"what's my balance", "wallet balance"},
		{"how do I receive funds", "receive cryptocurrency"},
		{"can I deposit here", "receive cryptocurrency"},
		{"swap some tokens", "swap between different cryptocurrencies"},
		{"exchange ETH please", "swap between different cryptocurrencies"},
		{"bridge to polygon", "Bridging allows you"},
		{"schedule a payment", "schedule transactions"},
		{"I want to borrow", "lending and borrowing"},
		{"can I lend crypto", "lending and borrowing"},
		{"help", "AI wallet assistant"},
		{"good morning", "here to help with your cryptocurrency wallet"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := cannedResponse(tt.message)
			if !strings.Contains(got, tt.want) {
				t.Errorf("cannedResponse(%q) = %q, want substring %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestGeneralToolRequiresMessage(t *testing.T) {
	gt := NewGeneralResponseTool(nil, "", logger.Discard())

	res, err := gt.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Errorf("expected error result for empty message")
	}
}
