package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"walletchat/internal/adapter/tool"
	"walletchat/internal/domain"
	"walletchat/internal/infra/config"
	"walletchat/internal/infra/logger"
)

func newTestChatService(t *testing.T, provider domain.CompletionProvider) *ChatService {
	t.Helper()

	log := logger.Discard()
	backend := tool.NewMockWalletBackend(0, 0, 1)
	registry := tool.NewRegistry(log)
	for _, tl := range []domain.Tool{
		tool.NewSendTool(backend, nil, log),
		tool.NewWalletInfoTool(backend, log),
		tool.NewSwapTool(backend, nil, log),
		tool.NewGeneralResponseTool(provider, "", log),
	} {
		if err := registry.Register(tl); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	sim := NewProgressSimulator(config.SimulatorConfig{
		TickInterval:  time.Millisecond,
		FailureDelay:  time.Hour,
		FailureChance: 0,
		Seed:          1,
	}, nil, log)
	t.Cleanup(sim.Stop)

	return NewChatService(ChatServiceDeps{
		Sessions:  NewSessionManager(nil),
		Locker:    NewSessionLocker(),
		Extractor: NewIntentExtractor(provider, log),
		Tools:     registry,
		Simulator: sim,
		Bus:       nil,
		Logger:    log,
		Config:    config.AgentConfig{SendConfidence: 0.6, MaxHistory: 100},
	})
}

func TestSubmitEmptyIsNoOp(t *testing.T) {
	c := newTestChatService(t, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		entry, err := c.Submit(context.Background(), "s1", text)
		if err != nil {
			t.Fatalf("Submit(%q): %v", text, err)
		}
		if entry != nil {
			t.Errorf("Submit(%q) produced entry %+v", text, entry)
		}
	}
	if _, err := c.sessions.Get("s1"); err == nil {
		t.Error("empty submit created a session")
	}
}

func TestSubmitGeneralMessage(t *testing.T) {
	c := newTestChatService(t, nil)

	entry, err := c.Submit(context.Background(), "s1", "good morning")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.Kind != domain.EntryText {
		t.Errorf("Kind = %q, want text", entry.Kind)
	}
	if !strings.Contains(entry.Display, "cryptocurrency wallet") {
		t.Errorf("Display = %q", entry.Display)
	}

	session, err := c.sessions.Get("s1")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	msgs := session.Messages()
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestSubmitSendAsksForConfirmation(t *testing.T) {
	c := newTestChatService(t, nil)

	entry, err := c.Submit(context.Background(), "s1", "Send 5.5 BTC to @bob_trader")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.Kind != domain.EntryConfirmation {
		t.Fatalf("Kind = %q, want confirmation", entry.Kind)
	}
	conf := entry.Confirmation
	if conf == nil {
		t.Fatal("entry has no confirmation payload")
	}
	if conf.Amount != 5.5 || conf.Currency != "BTC" || conf.Recipient != "bob_trader" {
		t.Errorf("confirmation = %+v", conf)
	}

	// No transaction exists until the user confirms.
	session, _ := c.sessions.Get("s1")
	if session.Pending() == nil {
		t.Error("pending confirmation not stored on session")
	}
}

func TestConfirmStartsSimulation(t *testing.T) {
	c := newTestChatService(t, nil)

	if _, err := c.Submit(context.Background(), "s1", "send 1 ETH to @alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	entry, err := c.Confirm(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if entry.Kind != domain.EntryProgress {
		t.Fatalf("Kind = %q, want progress", entry.Kind)
	}
	if entry.Progress == nil || entry.Progress.Status != domain.TxPending {
		t.Fatalf("Progress = %+v, want initial pending", entry.Progress)
	}
	txID := entry.Progress.TransactionID
	if !strings.HasPrefix(txID, "tx_") {
		t.Errorf("TransactionID = %q", txID)
	}

	// The simulator replaces the entry wholesale until terminal.
	deadline := time.Now().Add(5 * time.Second)
	for {
		p, err := c.Progress(txID)
		if err != nil {
			t.Fatalf("Progress: %v", err)
		}
		if p.Status == domain.TxCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("transaction never completed")
		}
		time.Sleep(2 * time.Millisecond)
	}

	session, _ := c.sessions.Get("s1")
	entries := session.UIEntries()
	last := entries[len(entries)-1]
	if last.ID != entry.ID {
		t.Fatalf("progress entry replaced with a new ID")
	}

	// Confirming again without a new pending send is an error.
	if _, err := c.Confirm(context.Background(), "s1"); !errors.Is(err, domain.ErrNoPendingConfirm) {
		t.Errorf("second Confirm err = %v, want ErrNoPendingConfirm", err)
	}
}

func TestConfirmWithoutPending(t *testing.T) {
	c := newTestChatService(t, nil)

	if _, err := c.Submit(context.Background(), "s1", "hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err := c.Confirm(context.Background(), "s1")
	if !errors.Is(err, domain.ErrNoPendingConfirm) {
		t.Errorf("err = %v, want ErrNoPendingConfirm", err)
	}
}

func TestDeclineIsIdempotent(t *testing.T) {
	c := newTestChatService(t, nil)

	// No session at all: still a no-op.
	if err := c.Decline(context.Background(), "ghost"); err != nil {
		t.Fatalf("Decline on unknown session: %v", err)
	}

	if _, err := c.Submit(context.Background(), "s1", "send 1 ETH to @alice"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	session, _ := c.sessions.Get("s1")
	entriesBefore := len(session.UIEntries())

	if err := c.Decline(context.Background(), "s1"); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if session.Pending() != nil {
		t.Error("pending confirmation not cleared")
	}
	if got := len(session.UIEntries()); got != entriesBefore {
		t.Errorf("Decline appended a UI entry: %d -> %d", entriesBefore, got)
	}

	// Declining again, and confirming after decline, both behave.
	if err := c.Decline(context.Background(), "s1"); err != nil {
		t.Fatalf("second Decline: %v", err)
	}
	if _, err := c.Confirm(context.Background(), "s1"); !errors.Is(err, domain.ErrNoPendingConfirm) {
		t.Errorf("Confirm after decline err = %v, want ErrNoPendingConfirm", err)
	}
}

type scriptedProvider struct{ reply string }

func (s *scriptedProvider) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	return s.reply, nil
}

func (s *scriptedProvider) Name() string { return "scripted" }

func TestSubmitBalanceUsesWalletInfo(t *testing.T) {
	c := newTestChatService(t, &scriptedProvider{reply: `{"intent": "balance", "confidence": 0.9}`})

	entry, err := c.Submit(context.Background(), "s1", "how much do I have?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.Kind != domain.EntryToolResult {
		t.Errorf("Kind = %q, want tool_result", entry.Kind)
	}
	if entry.ToolName != "getWalletInfo" {
		t.Errorf("ToolName = %q, want getWalletInfo", entry.ToolName)
	}
	if !strings.Contains(entry.Display, "16709.56") {
		t.Errorf("Display missing total value: %q", entry.Display)
	}
}

// blockingProvider stalls its first completion until released, letting tests
// prove that a second submit cannot overtake a stalled first one.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingProvider) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	var first bool
	b.once.Do(func() { first = true })
	if first {
		close(b.started)
		<-b.release
	}
	return "", errors.New("no classification")
}

func (b *blockingProvider) Name() string { return "blocking" }

func TestSubmitSerializedPerSession(t *testing.T) {
	p := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	c := newTestChatService(t, p)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.Submit(context.Background(), "s1", "what is a"); err != nil {
			t.Errorf("Submit a: %v", err)
		}
	}()

	<-p.started // a's remote call is in flight, holding the session lock

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.Submit(context.Background(), "s1", "what is b"); err != nil {
			t.Errorf("Submit b: %v", err)
		}
	}()

	time.Sleep(20 * time.Millisecond) // give b time to queue behind the lock
	close(p.release)                  // a's remote call now resolves, after b was dispatched
	wg.Wait()

	session, err := c.sessions.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	entries := session.UIEntries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	msgs := session.Messages()
	var userOrder []string
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			userOrder = append(userOrder, m.Content)
		}
	}
	if len(userOrder) != 2 || userOrder[0] != "what is a" || userOrder[1] != "what is b" {
		t.Errorf("user messages interleaved: %v", userOrder)
	}
	// Each user message is directly followed by its assistant entry.
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant ||
		msgs[2].Role != domain.RoleUser || msgs[3].Role != domain.RoleAssistant {
		t.Errorf("message roles interleaved: %+v", msgs)
	}
}
