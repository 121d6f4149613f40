package domain

import (
	"strings"
	"time"
)

// SupportedCurrencies is the fixed set of symbols the wallet understands.
var SupportedCurrencies = []string{
	"ETH", "BTC", "USDC", "ALGO", "MATIC", "SOL", "AVAX", "ADA", "DOT", "LINK", "UNI",
}

// DefaultCurrency is assumed when a message names no currency.
const DefaultCurrency = "ETH"

// IsSupportedCurrency reports whether symbol (case-insensitive) is in the
// supported set.
func IsSupportedCurrency(symbol string) bool {
	for _, c := range SupportedCurrencies {
		if strings.EqualFold(symbol, c) {
			return true
		}
	}
	return false
}

// NormalizeCurrency upper-cases a supported symbol. Unsupported symbols are
// returned unchanged for error reporting.
func NormalizeCurrency(symbol string) string {
	if IsSupportedCurrency(symbol) {
		return strings.ToUpper(symbol)
	}
	return symbol
}

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

// Terminal reports whether the status permits no further mutation.
func (s TxStatus) Terminal() bool {
	return s == TxCompleted || s == TxFailed
}

// SendRequest is a parsed request to transfer funds, awaiting confirmation.
type SendRequest struct {
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Recipient       string  `json:"recipient"`
	OriginalMessage string  `json:"original_message,omitempty"`
}

// Transaction is a send that has been submitted to the (mock) network.
type Transaction struct {
	ID        string    `json:"transaction_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Recipient string    `json:"recipient"`
	Status    TxStatus  `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Swap is a completed currency exchange quote.
type Swap struct {
	ID           string   `json:"transaction_id"`
	FromCurrency string   `json:"from_currency"`
	ToCurrency   string   `json:"to_currency"`
	FromAmount   float64  `json:"from_amount"`
	ToAmount     float64  `json:"to_amount"`
	ExchangeRate float64  `json:"exchange_rate"`
	Status       TxStatus `json:"status"`
}

// Balance is the holding of a single currency.
type Balance struct {
	Amount   float64 `json:"amount"`
	ValueUSD float64 `json:"value"`
}

// ActivityType distinguishes entries in the recent-transaction list.
type ActivityType string

const (
	ActivitySent     ActivityType = "sent"
	ActivityReceived ActivityType = "received"
)

// Activity is one row of the wallet's recent-transaction list.
type Activity struct {
	ID           string       `json:"id"`
	Type         ActivityType `json:"type"`
	Amount       float64      `json:"amount"`
	Currency     string       `json:"currency"`
	Counterparty string       `json:"counterparty"`
}

// WalletSnapshot is a read-only view of the wallet's state.
type WalletSnapshot struct {
	Balances           map[string]Balance `json:"balances"`
	TotalValueUSD      float64            `json:"total_value"`
	RecentTransactions []Activity         `json:"recent_transactions"`
}

// TransactionProgress tracks a confirmed send toward a terminal state.
// Percent is clamped to [0,100] and never decreases; once Status is terminal
// the record is frozen.
type TransactionProgress struct {
	TransactionID string   `json:"transaction_id"`
	Percent       float64  `json:"percent"`
	Status        TxStatus `json:"status"`
	Hash          string   `json:"hash"`
}
