package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"walletchat/internal/adapter/tool"
	"walletchat/internal/domain"
	"walletchat/internal/infra/config"
	"walletchat/internal/infra/logger"
	"walletchat/internal/usecase"
)

func newTestChannel(t *testing.T) *HTTPChannel {
	t.Helper()

	log := logger.Discard()
	backend := tool.NewMockWalletBackend(0, 0, 1)
	registry := tool.NewRegistry(log)
	for _, tl := range []domain.Tool{
		tool.NewSendTool(backend, nil, log),
		tool.NewWalletInfoTool(backend, log),
		tool.NewSwapTool(backend, nil, log),
		tool.NewGeneralResponseTool(nil, "", log),
	} {
		if err := registry.Register(tl); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	sim := usecase.NewProgressSimulator(config.SimulatorConfig{
		TickInterval:  time.Millisecond,
		FailureDelay:  time.Hour,
		FailureChance: 0,
		Seed:          1,
	}, nil, log)
	t.Cleanup(sim.Stop)

	service := usecase.NewChatService(usecase.ChatServiceDeps{
		Sessions:  usecase.NewSessionManager(nil),
		Locker:    usecase.NewSessionLocker(),
		Extractor: usecase.NewIntentExtractor(nil, log),
		Tools:     registry,
		Simulator: sim,
		Logger:    log,
		Config:    config.AgentConfig{SendConfidence: 0.6, MaxHistory: 100},
	})

	h := NewHTTPChannel(service, registry, config.HTTPChannelConfig{
		Addr:           "127.0.0.1:0",
		RequestsPerMin: 6000,
		BurstSize:      100,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		if err := h.Stop(shutdownCtx); err != nil {
			t.Errorf("Stop: %v", err)
		}
		cancel()
	})
	return h
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeChatResponse(t *testing.T, resp *http.Response) chatResponse {
	t.Helper()
	defer resp.Body.Close()
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestChatEndpoint(t *testing.T) {
	h := newTestChannel(t)
	base := "http://" + h.Addr()

	resp := postJSON(t, base+"/api/v1/chat", chatRequest{SessionID: "s1", Content: "hello there"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	out := decodeChatResponse(t, resp)
	if out.SessionID != "s1" {
		t.Errorf("SessionID = %q", out.SessionID)
	}
	if out.Entry == nil || out.Entry.Kind != domain.EntryText {
		t.Errorf("Entry = %+v, want text entry", out.Entry)
	}
}

func TestChatEndpointValidation(t *testing.T) {
	h := newTestChannel(t)
	base := "http://" + h.Addr()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing content", `{"session_id": "s1"}`, http.StatusBadRequest},
		{"malformed JSON", `{"session_id": `, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(base+"/api/v1/chat", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestConfirmFlow(t *testing.T) {
	h := newTestChannel(t)
	base := "http://" + h.Addr()

	resp := postJSON(t, base+"/api/v1/chat", chatRequest{SessionID: "s1", Content: "send 2 ETH to @alice"})
	out := decodeChatResponse(t, resp)
	if out.Entry == nil || out.Entry.Kind != domain.EntryConfirmation {
		t.Fatalf("Entry = %+v, want confirmation", out.Entry)
	}

	resp = postJSON(t, base+"/api/v1/chat/confirm", sessionRequest{SessionID: "s1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d, want 200", resp.StatusCode)
	}
	out = decodeChatResponse(t, resp)
	if out.Entry == nil || out.Entry.Kind != domain.EntryProgress || out.Entry.Progress == nil {
		t.Fatalf("Entry = %+v, want progress", out.Entry)
	}
	txID := out.Entry.Progress.TransactionID

	// Poll the transaction until it completes.
	deadline := time.Now().Add(5 * time.Second)
	for {
		r, err := http.Get(fmt.Sprintf("%s/api/v1/transactions/%s", base, txID))
		if err != nil {
			t.Fatalf("GET transaction: %v", err)
		}
		var p domain.TransactionProgress
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Fatalf("decode progress: %v", err)
		}
		r.Body.Close()
		if p.Status == domain.TxCompleted {
			if p.Percent != 100 {
				t.Errorf("Percent = %v at completion", p.Percent)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("transaction never completed")
		}
		time.Sleep(2 * time.Millisecond)
	}

	// A second confirm has nothing pending.
	resp = postJSON(t, base+"/api/v1/chat/confirm", sessionRequest{SessionID: "s1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second confirm status = %d, want 409", resp.StatusCode)
	}
}

func TestDeclineEndpoint(t *testing.T) {
	h := newTestChannel(t)
	base := "http://" + h.Addr()

	resp := postJSON(t, base+"/api/v1/chat", chatRequest{SessionID: "s1", Content: "send 1 ETH to @bob"})
	resp.Body.Close()

	resp = postJSON(t, base+"/api/v1/chat/decline", sessionRequest{SessionID: "s1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("decline status = %d, want 204", resp.StatusCode)
	}

	// Decline with nothing pending is still a success.
	resp = postJSON(t, base+"/api/v1/chat/decline", sessionRequest{SessionID: "s1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("repeat decline status = %d, want 204", resp.StatusCode)
	}
}

func TestSessionEntriesEndpoint(t *testing.T) {
	h := newTestChannel(t)
	base := "http://" + h.Addr()

	resp := postJSON(t, base+"/api/v1/chat", chatRequest{SessionID: "s1", Content: "hi"})
	resp.Body.Close()

	r, err := http.Get(base + "/api/v1/sessions/s1/entries")
	if err != nil {
		t.Fatalf("GET entries: %v", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", r.StatusCode)
	}
	var out struct {
		Entries []domain.UIEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Entries) != 1 {
		t.Errorf("got %d entries, want 1", len(out.Entries))
	}

	r2, err := http.Get(base + "/api/v1/sessions/nope/entries")
	if err != nil {
		t.Fatalf("GET entries: %v", err)
	}
	r2.Body.Close()
	if r2.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", r2.StatusCode)
	}
}

func TestWalletEndpoint(t *testing.T) {
	h := newTestChannel(t)
	base := "http://" + h.Addr()

	r, err := http.Get(base + "/api/v1/wallet")
	if err != nil {
		t.Fatalf("GET wallet: %v", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", r.StatusCode)
	}
	var out struct {
		Data *domain.WalletSnapshot `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data == nil || out.Data.TotalValueUSD != 16709.56 {
		t.Errorf("snapshot = %+v", out.Data)
	}
}

func TestUnknownTransaction(t *testing.T) {
	h := newTestChannel(t)
	base := "http://" + h.Addr()

	r, err := http.Get(base + "/api/v1/transactions/tx_missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", r.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestChannel(t)

	r, err := http.Get("http://" + h.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", r.StatusCode)
	}
}
