package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"walletchat/internal/domain"
	"walletchat/internal/infra/tracer"
)

// SwapTool exchanges one cryptocurrency for another at a mock quoted rate.
type SwapTool struct {
	backend WalletBackend
	bus     domain.EventBus
	logger  *slog.Logger
}

// NewSwapTool creates the swapCryptocurrency tool.
func NewSwapTool(backend WalletBackend, bus domain.EventBus, logger *slog.Logger) *SwapTool {
	return &SwapTool{backend: backend, bus: bus, logger: logger}
}

func (t *SwapTool) Name() string { return "swapCryptocurrency" }

func (t *SwapTool) Description() string {
	return "Swap between different cryptocurrencies"
}

func (t *SwapTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"fromCurrency": {
					"type": "string",
					"description": "The currency to swap from"
				},
				"toCurrency": {
					"type": "string",
					"description": "The currency to swap to"
				},
				"amount": {
					"type": "number",
					"description": "The amount to swap"
				}
			},
			"required": ["fromCurrency", "toCurrency", "amount"]
		}`),
	}
}

type swapParams struct {
	FromCurrency string  `json:"fromCurrency"`
	ToCurrency   string  `json:"toCurrency"`
	Amount       float64 `json:"amount"`
}

func (t *SwapTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.swap", t.logger, params,
		func(ctx context.Context, span trace.Span, p swapParams) (any, error) {
			if err := ValidateAll(
				RequireField("fromCurrency", p.FromCurrency),
				RequireField("toCurrency", p.ToCurrency),
				ValidateCurrency("fromCurrency", p.FromCurrency),
				ValidateCurrency("toCurrency", p.ToCurrency),
				ValidatePositiveAmount("amount", p.Amount),
			); err != nil {
				return nil, err
			}
			from := domain.NormalizeCurrency(p.FromCurrency)
			to := domain.NormalizeCurrency(p.ToCurrency)
			if from == to {
				return nil, fmt.Errorf("cannot swap %s for itself", from)
			}

			span.SetAttributes(
				tracer.StringAttr("wallet.from_currency", p.FromCurrency),
				tracer.StringAttr("wallet.to_currency", p.ToCurrency),
				tracer.Float64Attr("wallet.amount", p.Amount),
			)

			swap, err := t.backend.Swap(ctx, from, to, p.Amount)
			if err != nil {
				return nil, err
			}

			PublishToolEvent(ctx, t.bus, domain.EventToolCallCompleted, swap)
			return swap, nil
		},
	)
}

var _ domain.Tool = (*SwapTool)(nil)
