package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"walletchat/internal/domain"
)

// TUIChannel runs the wallet chat as a Bubble Tea program.
type TUIChannel struct {
	driver    ChatDriver
	logger    *slog.Logger
	program   *tea.Program
	bus       domain.EventBus // optional, nil = no live progress updates
	modelName string
}

// NewTUIChannel creates a terminal chat channel over the chat service.
func NewTUIChannel(driver ChatDriver, logger *slog.Logger) *TUIChannel {
	return &TUIChannel{
		driver: driver,
		logger: logger,
	}
}

// SetEventBus enables forwarding transaction progress events to the TUI.
func (c *TUIChannel) SetEventBus(bus domain.EventBus) {
	c.bus = bus
}

// SetModelName sets the provider model name shown in the status bar.
func (c *TUIChannel) SetModelName(name string) {
	c.modelName = name
}

// Start creates the Bubble Tea program and blocks until it exits.
func (c *TUIChannel) Start(ctx context.Context) error {
	model := NewChatModel(ChatModelDeps{
		Driver:    c.driver,
		Logger:    c.logger,
		SessionID: DefaultSessionID,
		ModelName: c.modelName,
	})

	c.program = tea.NewProgram(model, tea.WithAltScreen())

	// Forward progress events from the bus into the update loop. The
	// simulator publishes these from its own goroutine after Confirm returns.
	if c.bus != nil {
		unsub := c.bus.Subscribe(domain.EventTransactionProgress, func(_ context.Context, event domain.Event) {
			var p domain.TransactionProgress
			if err := json.Unmarshal(event.Payload, &p); err != nil {
				return
			}
			c.program.Send(ProgressMsg(p))
		})
		defer unsub()
	}

	go func() {
		<-ctx.Done()
		if c.program != nil {
			c.program.Send(QuitMsg{})
		}
	}()

	_, err := c.program.Run()
	return err
}

// Stop signals the Bubble Tea program to quit.
func (c *TUIChannel) Stop(_ context.Context) error {
	if c.program != nil {
		c.program.Send(QuitMsg{})
	}
	return nil
}

// Name identifies the channel in logs.
func (c *TUIChannel) Name() string { return "cli" }
