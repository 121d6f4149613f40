package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"walletchat/internal/adapter/tui/theme"
	"walletchat/internal/domain"
)

// DefaultSessionID is the session identifier used by the TUI channel.
const DefaultSessionID = "cli-default"

// ChatDriver is the slice of the chat service the TUI drives.
type ChatDriver interface {
	Submit(ctx context.Context, sessionID, text string) (*domain.UIEntry, error)
	Confirm(ctx context.Context, sessionID string) (*domain.UIEntry, error)
	Decline(ctx context.Context, sessionID string) error
}

// ChatModelDeps are dependencies injected into the chat model.
type ChatModelDeps struct {
	Driver    ChatDriver
	Logger    *slog.Logger
	SessionID string
	ModelName string
}

// Messages produced by the model's commands and by the channel bridge.
type (
	submitDoneMsg struct {
		entry *domain.UIEntry
		err   error
	}
	confirmDoneMsg struct {
		entry *domain.UIEntry
		err   error
	}
	declineDoneMsg struct{ err error }

	// ProgressMsg carries a live transaction update into the update loop.
	ProgressMsg domain.TransactionProgress

	// QuitMsg asks the program to exit.
	QuitMsg struct{}
)

// ChatModel is the root Bubble Tea model for the wallet chat TUI.
type ChatModel struct {
	deps      ChatModelDeps
	sessionID string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	bar      progress.Model

	lines      []string
	confirming *domain.SendRequest
	waiting    bool

	// activeTx and progressLine track the transcript line that is rewritten
	// in place while a confirmed transaction progresses.
	activeTx     string
	progressLine int

	width    int
	height   int
	quitting bool
}

// NewChatModel creates the root chat model.
func NewChatModel(deps ChatModelDeps) ChatModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	in := textinput.New()
	in.Placeholder = "Ask about your wallet, or tell me to send crypto..."
	in.Prompt = theme.InputPrompt.Render("> ")
	in.Focus()

	sessionID := deps.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	return ChatModel{
		deps:         deps,
		sessionID:    sessionID,
		input:        in,
		spinner:      s,
		bar:          progress.New(progress.WithDefaultGradient()),
		progressLine: -1,
	}
}

// Init initializes sub-models.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// Update handles all incoming messages.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case submitDoneMsg:
		return m.handleSubmitDone(msg)

	case confirmDoneMsg:
		m.waiting = false
		m.input.Focus()
		if msg.err != nil {
			m.appendLine(theme.ErrorLabel.Render(theme.SymbolError+" ") + msg.err.Error())
			return m, nil
		}
		if msg.entry.Kind == domain.EntryProgress && msg.entry.Progress != nil {
			m.activeTx = msg.entry.Progress.TransactionID
			m.appendLine(m.progressView(*msg.entry.Progress))
			m.progressLine = len(m.lines) - 2
		} else {
			m.appendLine(botLine(msg.entry.Display))
		}
		m.refreshViewport()
		return m, nil

	case declineDoneMsg:
		m.waiting = false
		m.input.Focus()
		if msg.err != nil {
			m.appendLine(theme.ErrorLabel.Render(theme.SymbolError+" ") + msg.err.Error())
		} else {
			m.appendLine(theme.SystemLabel.Render("Transfer cancelled."))
		}
		m.refreshViewport()
		return m, nil

	case ProgressMsg:
		p := domain.TransactionProgress(msg)
		if p.TransactionID != m.activeTx || m.progressLine < 0 {
			return m, nil
		}
		m.lines[m.progressLine] = m.progressView(p)
		if p.Status != domain.TxPending {
			m.activeTx = ""
			m.progressLine = -1
		}
		m.refreshViewport()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.waiting && m.confirming == nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// A pending confirmation captures the keyboard until answered.
	if m.confirming != nil {
		switch msg.String() {
		case "y", "Y", "enter":
			req := m.confirming
			m.confirming = nil
			m.waiting = true
			m.appendLine(theme.SystemLabel.Render(
				fmt.Sprintf("Confirming transfer of %v %s to %s...", req.Amount, req.Currency, req.Recipient)))
			m.refreshViewport()
			return m, m.confirmCmd()
		case "n", "N", "esc":
			m.confirming = nil
			m.waiting = true
			return m, m.declineCmd()
		}
		return m, nil
	}

	if msg.Type == tea.KeyEnter && !m.waiting {
		return m.handleSubmit(strings.TrimSpace(m.input.Value()))
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ChatModel) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		return m, nil
	}
	if value == "/quit" || value == "/exit" {
		m.quitting = true
		return m, tea.Quit
	}

	m.input.Reset()
	m.appendLine(theme.UserLabel.Render(theme.SymbolUser+": ") + value)
	m.refreshViewport()
	m.waiting = true
	m.input.Blur()

	return m, m.submitCmd(value)
}

func (m ChatModel) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.waiting = false
	m.input.Focus()

	if msg.err != nil {
		m.appendLine(theme.ErrorLabel.Render(theme.SymbolError+" ") + msg.err.Error())
		m.refreshViewport()
		return m, nil
	}
	if msg.entry == nil {
		return m, nil
	}

	switch msg.entry.Kind {
	case domain.EntryConfirmation:
		m.confirming = msg.entry.Confirmation
		m.appendLine(botLine(msg.entry.Display))
	default:
		m.appendLine(botLine(msg.entry.Display))
	}
	m.refreshViewport()
	return m, nil
}

// View renders the entire chat UI.
func (m ChatModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	parts := []string{m.viewport.View()}

	if m.confirming != nil {
		parts = append(parts, m.confirmBox())
	}

	inputView := m.input.View()
	if m.waiting {
		inputView = m.spinner.View() + " " + theme.Dim.Render("Working...")
	}
	parts = append(parts, strings.Repeat("─", m.width), inputView, m.statusView())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m ChatModel) confirmBox() string {
	req := m.confirming
	body := fmt.Sprintf("%s %v %s %s %s\n%s",
		theme.TextWarning.Render("Confirm transfer:"),
		req.Amount, req.Currency,
		theme.SymbolBullet, req.Recipient,
		theme.TextMuted.Render("[y] confirm  [n] cancel"))
	return theme.ConfirmBox.Width(theme.Clamp(m.width-2, 20, theme.MaxContentWidth)).Render(body)
}

func (m ChatModel) statusView() string {
	hints := theme.StatusKey.Render("Enter") + " Send  " +
		theme.StatusKey.Render("PgUp/PgDn") + " Scroll  " +
		theme.StatusKey.Render("Ctrl+C") + " Quit"
	name := theme.SymbolBot
	if m.deps.ModelName != "" {
		name += " " + theme.SymbolBullet + " " + m.deps.ModelName
	}
	bar := name + "  " + hints
	return theme.StatusBar.Width(m.width).Render(bar)
}

// progressView renders one transaction progress line with a percent bar and a
// status-colored tail.
func (m ChatModel) progressView(p domain.TransactionProgress) string {
	switch p.Status {
	case domain.TxCompleted:
		return theme.TxCompletedStyle.Render(theme.SymbolSuccess+" Transaction completed.") +
			" " + theme.Dim.Render(p.Hash)
	case domain.TxFailed:
		return theme.TxFailedStyle.Render(theme.SymbolError + " Transaction failed. You can retry the transfer.")
	default:
		return theme.TxPendingStyle.Render(theme.SymbolPending+" Sending ") +
			m.bar.ViewAs(p.Percent/100)
	}
}

func (m *ChatModel) layout() {
	inputH := 1
	statusH := 1
	dividerH := 1
	confirmH := 0
	if m.confirming != nil {
		confirmH = 4
	}
	contentH := m.height - inputH - statusH - dividerH - confirmH
	if contentH < 3 {
		contentH = 3
	}

	m.viewport = viewport.New(m.width, contentH)
	m.input.Width = m.width - 4
	m.bar.Width = theme.Clamp(m.width/2, 10, 50)
	m.refreshViewport()
}

func (m *ChatModel) appendLine(line string) {
	m.lines = append(m.lines, line, "")
}

func (m *ChatModel) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func botLine(content string) string {
	return theme.BotLabel.Render(theme.SymbolBot+": ") + content
}

func (m ChatModel) submitCmd(value string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.deps.Driver.Submit(context.Background(), m.sessionID, value)
		return submitDoneMsg{entry: entry, err: err}
	}
}

func (m ChatModel) confirmCmd() tea.Cmd {
	return func() tea.Msg {
		entry, err := m.deps.Driver.Confirm(context.Background(), m.sessionID)
		return confirmDoneMsg{entry: entry, err: err}
	}
}

func (m ChatModel) declineCmd() tea.Cmd {
	return func() tea.Msg {
		return declineDoneMsg{err: m.deps.Driver.Decline(context.Background(), m.sessionID)}
	}
}
