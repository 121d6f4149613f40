package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"walletchat/internal/domain"
	"walletchat/internal/infra/config"
	"walletchat/internal/infra/tracer"
)

const confirmationMessage = "I can help you send cryptocurrency. Please confirm the transaction details."

// ChatServiceDeps carries the collaborators for a ChatService.
type ChatServiceDeps struct {
	Sessions  *SessionManager
	Locker    *SessionLocker
	Extractor *IntentExtractor
	Tools     domain.ToolExecutor
	Simulator *ProgressSimulator
	Bus       domain.EventBus
	Logger    *slog.Logger
	Config    config.AgentConfig
}

// ChatService drives the conversation state machine: submit routes a user
// message through intent extraction to a tool, confirm hands a pending send
// to the progress simulator, decline discards it. Handling within one session
// is strictly serialized; the simulator runs independently afterwards.
type ChatService struct {
	sessions  *SessionManager
	locker    *SessionLocker
	extractor *IntentExtractor
	tools     domain.ToolExecutor
	simulator *ProgressSimulator
	bus       domain.EventBus
	logger    *slog.Logger
	cfg       config.AgentConfig
}

// NewChatService creates a chat service.
func NewChatService(deps ChatServiceDeps) *ChatService {
	return &ChatService{
		sessions:  deps.Sessions,
		locker:    deps.Locker,
		extractor: deps.Extractor,
		tools:     deps.Tools,
		simulator: deps.Simulator,
		bus:       deps.Bus,
		logger:    deps.Logger,
		cfg:       deps.Config,
	}
}

// Submit handles one user message. Empty or whitespace-only input is a no-op
// and returns a nil entry. For a transfer intent above the confidence
// threshold, no funds move yet: a confirmation entry is appended and the send
// waits for Confirm or Decline. Every other intent dispatches to a tool and
// appends its result.
func (c *ChatService) Submit(ctx context.Context, sessionID, text string) (*domain.UIEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	unlock, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "chat.submit")
	defer span.End()
	ctx = domain.WithSessionID(ctx, sessionID)

	session := c.sessions.GetOrCreate(sessionID)
	session.AddMessage(domain.Message{Role: domain.RoleUser, Content: text})
	c.publish(ctx, domain.EventMessageReceived, sessionID, map[string]string{"text": text})

	intent := c.extractor.Extract(ctx, text)
	span.SetAttributes(
		tracer.StringAttr("intent.kind", string(intent.Kind)),
		tracer.Float64Attr("intent.confidence", intent.Confidence),
	)

	var entry domain.UIEntry
	if intent.IsSend(c.cfg.SendConfidence) {
		req := &domain.SendRequest{
			Amount:          intent.Amount,
			Currency:        intent.Currency,
			Recipient:       intent.Recipient,
			OriginalMessage: text,
		}
		session.SetPending(req)
		entry = domain.UIEntry{
			Kind:         domain.EntryConfirmation,
			Display:      confirmationMessage,
			Confirmation: req,
		}
	} else {
		entry = c.dispatchTool(ctx, intent, text)
	}

	entry.ID = session.AppendEntry(entry)
	session.AddMessage(domain.Message{Role: domain.RoleAssistant, Content: entry.Display})
	session.Truncate(c.cfg.MaxHistory)
	c.publish(ctx, domain.EventMessageSent, sessionID, map[string]string{"text": entry.Display})

	tracer.SetOK(span)
	return &entry, nil
}

// dispatchTool routes a non-transfer intent to the matching tool. Tool
// validation failures come back as a clarification text, never an error.
func (c *ChatService) dispatchTool(ctx context.Context, intent domain.Intent, text string) domain.UIEntry {
	toolName := "generalResponse"
	args := map[string]any{"message": text}
	if intent.Kind == domain.IntentBalance || intent.Kind == domain.IntentHistory {
		toolName = "getWalletInfo"
		args = map[string]any{"query": text}
	}

	result := c.invokeTool(ctx, toolName, args)
	if result.IsError {
		return domain.UIEntry{
			Kind:     domain.EntryText,
			Display:  fmt.Sprintf("I couldn't quite do that: %s. Could you clarify?", result.Content),
			ToolName: toolName,
		}
	}

	kind := domain.EntryText
	if toolName != "generalResponse" {
		kind = domain.EntryToolResult
	}
	return domain.UIEntry{Kind: kind, Display: result.Content, ToolName: toolName}
}

// invokeTool looks up and executes a tool, reducing every failure mode to a
// ToolResult so the conversation never sees a raw error.
func (c *ChatService) invokeTool(ctx context.Context, name string, args map[string]any) *domain.ToolResult {
	sessionID := domain.SessionIDFromContext(ctx)
	c.publish(ctx, domain.EventToolCallStarted, sessionID, map[string]string{"tool": name})

	t, err := c.tools.Get(name)
	if err != nil {
		c.logger.Error("tool lookup failed", "tool", name, "error", err)
		return &domain.ToolResult{IsError: true, Content: err.Error()}
	}

	params, err := json.Marshal(args)
	if err != nil {
		return &domain.ToolResult{IsError: true, Content: err.Error()}
	}

	result, err := t.Execute(ctx, params)
	if err != nil {
		c.logger.Error("tool execution failed", "tool", name, "error", err)
		return &domain.ToolResult{IsError: true, Content: err.Error()}
	}
	return result
}

// Confirm executes the session's pending send and starts the progress
// simulator. It returns the progress entry that will be replaced in place as
// the simulation advances. With no pending confirmation it returns
// ErrNoPendingConfirm.
func (c *ChatService) Confirm(ctx context.Context, sessionID string) (*domain.UIEntry, error) {
	unlock, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "chat.confirm")
	defer span.End()
	ctx = domain.WithSessionID(ctx, sessionID)

	session, err := c.sessions.Get(sessionID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	req := session.TakePending()
	if req == nil {
		err := domain.NewDomainError("ChatService.Confirm", domain.ErrNoPendingConfirm, sessionID)
		tracer.RecordError(span, err)
		return nil, err
	}

	result := c.invokeTool(ctx, "sendCryptocurrency", map[string]any{
		"amount":    req.Amount,
		"currency":  req.Currency,
		"recipient": req.Recipient,
	})
	if result.IsError {
		entry := domain.UIEntry{
			Kind:     domain.EntryText,
			Display:  fmt.Sprintf("The transfer could not be prepared: %s", result.Content),
			ToolName: "sendCryptocurrency",
		}
		entry.ID = session.AppendEntry(entry)
		return &entry, nil
	}

	var tx domain.Transaction
	if err := json.Unmarshal([]byte(result.Content), &tx); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("decode send result: %w", err)
	}

	c.publish(ctx, domain.EventTransactionConfirmed, sessionID, tx)

	entry := domain.UIEntry{
		Kind:     domain.EntryProgress,
		Display:  fmt.Sprintf("Processing transaction: %v %s to %s", req.Amount, req.Currency, req.Recipient),
		ToolName: "sendCryptocurrency",
	}
	entryID := session.AppendEntry(entry)
	entry.ID = entryID
	session.AddMessage(domain.Message{Role: domain.RoleAssistant, Content: entry.Display})

	initial, err := c.simulator.Start(ctx, tx.ID, func(p domain.TransactionProgress) {
		session.ReplaceEntry(entryID, domain.UIEntry{
			Kind:     domain.EntryProgress,
			Display:  progressDisplay(p),
			ToolName: "sendCryptocurrency",
			Progress: &p,
		})
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	entry.Progress = &initial
	session.ReplaceEntry(entryID, entry)

	tracer.SetOK(span)
	return &entry, nil
}

// Decline discards the session's pending confirmation. Declining with nothing
// pending is a no-op: no error, no UI entry.
func (c *ChatService) Decline(ctx context.Context, sessionID string) error {
	unlock, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	ctx = domain.WithSessionID(ctx, sessionID)

	session, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil
	}
	req := session.TakePending()
	if req == nil {
		return nil
	}

	c.logger.Debug("transaction declined",
		"session_id", sessionID,
		"amount", req.Amount,
		"currency", req.Currency,
		"recipient", req.Recipient,
	)
	c.publish(ctx, domain.EventTransactionDeclined, sessionID, req)
	return nil
}

// Entries returns the session's rendered UI entry list.
func (c *ChatService) Entries(sessionID string) ([]domain.UIEntry, error) {
	session, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.UIEntries(), nil
}

// Progress returns the live state of a simulated transaction.
func (c *ChatService) Progress(transactionID string) (domain.TransactionProgress, error) {
	return c.simulator.Get(transactionID)
}

func (c *ChatService) publish(ctx context.Context, eventType domain.EventType, sessionID string, payload any) {
	if c.bus == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	c.bus.Publish(ctx, domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Payload:   raw,
	})
}

func progressDisplay(p domain.TransactionProgress) string {
	switch p.Status {
	case domain.TxCompleted:
		return fmt.Sprintf("Transaction completed. Hash: %s", p.Hash)
	case domain.TxFailed:
		return "Transaction failed. You can retry the transfer."
	default:
		return fmt.Sprintf("Transaction pending: %.0f%%", p.Percent)
	}
}
