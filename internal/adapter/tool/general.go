package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"walletchat/internal/domain"
)

// GeneralResponseTool answers non-transactional wallet questions. When a
// completion provider is configured it drafts the reply; otherwise (or on
// provider failure) a keyword-matched canned response is returned, so the
// tool never errors out on provider trouble.
type GeneralResponseTool struct {
	provider domain.CompletionProvider // optional
	system   string
	logger   *slog.Logger
}

// NewGeneralResponseTool creates the generalResponse tool. provider may be nil.
func NewGeneralResponseTool(provider domain.CompletionProvider, systemPrompt string, logger *slog.Logger) *GeneralResponseTool {
	return &GeneralResponseTool{provider: provider, system: systemPrompt, logger: logger}
}

func (t *GeneralResponseTool) Name() string { return "generalResponse" }

func (t *GeneralResponseTool) Description() string {
	return "Respond to general wallet questions and conversation"
}

func (t *GeneralResponseTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"message": {
					"type": "string",
					"description": "The user's message to respond to"
				}
			},
			"required": ["message"]
		}`),
	}
}

type generalParams struct {
	Message string `json:"message"`
}

func (t *GeneralResponseTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.general", t.logger, params,
		func(ctx context.Context, span trace.Span, p generalParams) (any, error) {
			if err := RequireField("message", p.Message); err != nil {
				return nil, err
			}

			if t.provider != nil {
				reply, err := t.provider.Complete(ctx, domain.CompletionRequest{
					System: t.system,
					Prompt: p.Message,
				})
				if err == nil && strings.TrimSpace(reply) != "" {
					return TextResult(strings.TrimSpace(reply)), nil
				}
				if err != nil {
					t.logger.Debug("completion failed, using canned response", "error", err)
				}
			}

			return TextResult(cannedResponse(p.Message)), nil
		},
	)
}

// cannedResponse picks a reply by keyword. The catch-all keeps the
// conversation moving when nothing matches.
func cannedResponse(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "balance"):
		return "I can help you check your wallet balance. Your current balances are: ETH: 2.45, USDC: 1,234.56, ALGO: 500.00. Would you like to see more details for any specific token?"
	case strings.Contains(lower, "receive"), strings.Contains(lower, "deposit"):
		return "To receive cryptocurrency, you can share your wallet address or generate a QR code. Would you like me to show your receiving address for a specific token?"
	case strings.Contains(lower, "swap"), strings.Contains(lower, "exchange"):
		return "I can help you swap between different cryptocurrencies. What tokens would you like to swap? For example, you could swap ETH for USDC or vice versa."
	case strings.Contains(lower, "bridge"):
		return "Bridging allows you to move assets between different blockchains. Which chains would you like to bridge between? Popular options include Ethereum, Polygon, and Avalanche."
	case strings.Contains(lower, "schedule"):
		return "You can schedule transactions to be executed at a specific time or when certain conditions are met. What type of scheduled transaction would you like to set up?"
	case strings.Contains(lower, "borrow"), strings.Contains(lower, "lend"):
		return "I can help you explore DeFi lending and borrowing options. You can lend your crypto to earn yield or borrow against your holdings. What are you interested in?"
	case strings.Contains(lower, "help"), strings.Contains(lower, "what can you do"):
		return "I'm your AI wallet assistant! I can help you send crypto, check balances, swap tokens, bridge assets, schedule transactions, and explore DeFi opportunities. What would you like to do?"
	default:
		return "I'm here to help with your cryptocurrency wallet needs. I can assist with sending crypto, checking balances, swapping tokens, and more. How can I help you today?"
	}
}

var _ domain.Tool = (*GeneralResponseTool)(nil)
