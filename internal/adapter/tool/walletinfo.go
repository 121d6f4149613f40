package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"walletchat/internal/domain"
	"walletchat/internal/infra/tracer"
)

// WalletInfoTool returns the wallet's balances and recent activity.
type WalletInfoTool struct {
	backend WalletBackend
	logger  *slog.Logger
}

// NewWalletInfoTool creates the getWalletInfo tool.
func NewWalletInfoTool(backend WalletBackend, logger *slog.Logger) *WalletInfoTool {
	return &WalletInfoTool{backend: backend, logger: logger}
}

func (t *WalletInfoTool) Name() string { return "getWalletInfo" }

func (t *WalletInfoTool) Description() string {
	return "Get wallet balance and information"
}

func (t *WalletInfoTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "The type of wallet information requested"
				}
			},
			"required": ["query"]
		}`),
	}
}

type walletInfoParams struct {
	Query string `json:"query"`
}

type walletInfoResult struct {
	Query string                 `json:"query"`
	Data  *domain.WalletSnapshot `json:"data"`
}

func (t *WalletInfoTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.wallet_info", t.logger, params,
		func(ctx context.Context, span trace.Span, p walletInfoParams) (any, error) {
			span.SetAttributes(tracer.StringAttr("wallet.query", p.Query))

			snap, err := t.backend.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return walletInfoResult{Query: p.Query, Data: snap}, nil
		},
	)
}

var _ domain.Tool = (*WalletInfoTool)(nil)
