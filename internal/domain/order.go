package domain

import "time"

// Status is the gateway's payment status vocabulary. The gateway may
// introduce values we have never seen, so the type stays an open string
// token; this core only ever compares statuses for equality and checks
// whether a value is terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusExpired Status = "expired"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the status is one of the known settled values.
// A terminal status is never overwritten by reconciliation.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// Settlement holds the detail fields that become available once the
// gateway settles a payment. All fields are optional and written together
// with the status change.
type Settlement struct {
	Owner               string `json:"owner,omitempty"`
	DepositAddress      string `json:"deposit_address,omitempty"`
	CallID              int64  `json:"call_id,omitempty"`
	ReceiveTxID         string `json:"receive_tx_id,omitempty"`
	ReceiveChainID      int64  `json:"receive_chain_id,omitempty"`
	ReceiveChainName    string `json:"receive_chain_name,omitempty"`
	ReceiveTokenSymbol  string `json:"receive_token_symbol,omitempty"`
	ReceiveTokenAddress string `json:"receive_token_address,omitempty"`
}

// Order is a tracked payment request against the external gateway. It is
// created once, keyed by the internally minted reference ID and the
// gateway-issued PayID, and after creation only the status and settlement
// detail fields ever change.
type Order struct {
	ID             string     `json:"id"`
	PayID          string     `json:"pay_id"`
	Status         Status     `json:"status"`
	Receiver       string     `json:"receiver"`
	Amount         string     `json:"amount"`
	OriginalAmount string     `json:"original_amount"`
	MaxFeeAmount   string     `json:"max_fee_amount"`
	ChatID         int64      `json:"chat_id"`
	Settlement     Settlement `json:"settlement"`
	Deadline       time.Time  `json:"deadline"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
