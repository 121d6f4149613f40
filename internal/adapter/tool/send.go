package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"walletchat/internal/domain"
	"walletchat/internal/infra/tracer"
)

// SendTool submits a confirmed transfer to the wallet backend.
type SendTool struct {
	backend WalletBackend
	bus     domain.EventBus
	logger  *slog.Logger
}

// NewSendTool creates the sendCryptocurrency tool.
func NewSendTool(backend WalletBackend, bus domain.EventBus, logger *slog.Logger) *SendTool {
	return &SendTool{backend: backend, bus: bus, logger: logger}
}

func (t *SendTool) Name() string { return "sendCryptocurrency" }

func (t *SendTool) Description() string {
	return "Process a cryptocurrency sending request"
}

func (t *SendTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"amount": {
					"type": "number",
					"description": "The amount of cryptocurrency to send"
				},
				"currency": {
					"type": "string",
					"description": "The cryptocurrency symbol (e.g., ETH, BTC, USDC, ALGO)"
				},
				"recipient": {
					"type": "string",
					"description": "The recipient username or wallet address"
				}
			},
			"required": ["amount", "currency", "recipient"]
		}`),
	}
}

type sendParams struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Recipient string  `json:"recipient"`
}

func (t *SendTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.send", t.logger, params,
		func(ctx context.Context, span trace.Span, p sendParams) (any, error) {
			if err := ValidateAll(
				ValidatePositiveAmount("amount", p.Amount),
				RequireField("currency", p.Currency),
				ValidateCurrency("currency", p.Currency),
				RequireField("recipient", p.Recipient),
			); err != nil {
				return nil, err
			}

			span.SetAttributes(
				tracer.StringAttr("wallet.currency", p.Currency),
				tracer.Float64Attr("wallet.amount", p.Amount),
			)

			tx, err := t.backend.Send(ctx, domain.SendRequest{
				Amount:    p.Amount,
				Currency:  domain.NormalizeCurrency(p.Currency),
				Recipient: p.Recipient,
			})
			if err != nil {
				return nil, err
			}

			PublishToolEvent(ctx, t.bus, domain.EventToolCallCompleted, tx)
			return tx, nil
		},
	)
}

var _ domain.Tool = (*SendTool)(nil)
