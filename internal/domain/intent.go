package domain

// IntentKind classifies the purpose of a user message.
type IntentKind string

const (
	IntentSend    IntentKind = "send"
	IntentGeneral IntentKind = "general"
	IntentHelp    IntentKind = "help"
	IntentBalance IntentKind = "balance"
	IntentHistory IntentKind = "history"
	IntentOther   IntentKind = "other"
)

// Intent is the classified purpose of a user message. Amount, Currency and
// Recipient are only meaningful for IntentSend; zero values mean the field was
// not present in the message and a default applies.
type Intent struct {
	Kind       IntentKind `json:"intent"`
	Amount     float64    `json:"amount,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	Recipient  string     `json:"recipient,omitempty"`
	Confidence float64    `json:"confidence"`
}

// IsSend reports whether the intent is a transfer with confidence above the
// given threshold. Ambiguous text stays below the threshold so the user is
// not prompted with a spurious transaction confirmation.
func (i Intent) IsSend(threshold float64) bool {
	return i.Kind == IntentSend && i.Confidence > threshold
}
