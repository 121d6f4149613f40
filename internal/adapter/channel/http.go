package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"walletchat/internal/domain"
	"walletchat/internal/infra/config"
	"walletchat/internal/infra/middleware"
	"walletchat/internal/usecase"
)

// HTTPChannel exposes the chat service as a JSON API. Handlers are
// synchronous: each request runs the full conversation turn and returns the
// resulting UI entry. Confirmed transactions keep progressing after the
// response; clients poll the transaction endpoint.
type HTTPChannel struct {
	service *usecase.ChatService
	tools   domain.ToolExecutor
	logger  *slog.Logger
	cfg     config.HTTPChannelConfig

	server *http.Server

	// Actual bound address (set after Start)
	boundAddr string

	// Lifecycle management for rate limiter cleanup goroutine
	ctx    context.Context
	cancel context.CancelFunc
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	SessionID string          `json:"session_id"`
	Entry     *domain.UIEntry `json:"entry,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPChannel creates an HTTP API channel over the chat service. tools is
// used only for the read-only wallet endpoint.
func NewHTTPChannel(service *usecase.ChatService, tools domain.ToolExecutor, cfg config.HTTPChannelConfig, logger *slog.Logger) *HTTPChannel {
	return &HTTPChannel{
		service: service,
		tools:   tools,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start begins the HTTP server. Non-blocking (starts in goroutine).
func (h *HTTPChannel) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	secureHandler := middleware.SecurityHeaders(
		middleware.RateLimit(h.ctx, h.cfg.RequestsPerMin, h.cfg.BurstSize)(h.routes()),
	)

	h.server = &http.Server{
		Addr:              h.cfg.Addr,
		Handler:           secureHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.cfg.Addr, err)
	}
	h.boundAddr = ln.Addr().String()

	go func() {
		h.logger.Info("http channel started", "addr", h.boundAddr)
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (h *HTTPChannel) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// Addr returns the bound listen address, available after Start.
func (h *HTTPChannel) Addr() string { return h.boundAddr }

func (h *HTTPChannel) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", h.handleChat)
	mux.HandleFunc("POST /api/v1/chat/confirm", h.handleConfirm)
	mux.HandleFunc("POST /api/v1/chat/decline", h.handleDecline)
	mux.HandleFunc("GET /api/v1/sessions/{id}/entries", h.handleEntries)
	mux.HandleFunc("GET /api/v1/transactions/{id}", h.handleTransaction)
	mux.HandleFunc("GET /api/v1/wallet", h.handleWallet)
	mux.HandleFunc("GET /api/v1/health", h.handleHealth)
	return mux
}

func (h *HTTPChannel) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChat(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Submit(r.Context(), req.SessionID, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Entry: entry})
}

func (h *HTTPChannel) handleConfirm(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSession(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Confirm(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Entry: entry})
}

func (h *HTTPChannel) handleDecline(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSession(w, r)
	if !ok {
		return
	}

	if err := h.service.Decline(r.Context(), req.SessionID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPChannel) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Entries(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.UIEntry{"entries": entries})
}

func (h *HTTPChannel) handleTransaction(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Progress(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *HTTPChannel) handleWallet(w http.ResponseWriter, r *http.Request) {
	t, err := h.tools.Get("getWalletInfo")
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := t.Execute(r.Context(), json.RawMessage(`{"query":"balance"}`))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result.IsError {
		h.writeError(w, fmt.Errorf("wallet lookup: %s", result.Content))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, result.Content)
}

func (h *HTTPChannel) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeChat(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: decodeErrMsg(err)})
		return chatRequest{}, false
	}
	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("http-%d", time.Now().UnixNano())
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content is required"})
		return chatRequest{}, false
	}
	return req, true
}

func decodeSession(w http.ResponseWriter, r *http.Request) (sessionRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: decodeErrMsg(err)})
		return sessionRequest{}, false
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return sessionRequest{}, false
	}
	return req, true
}

func decodeErrMsg(err error) string {
	if err.Error() == "http: request body too large" {
		return "request body too large (max 1MB)"
	}
	return "invalid JSON: " + err.Error()
}

// writeError maps domain errors to HTTP status codes.
func (h *HTTPChannel) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoPendingConfirm):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
