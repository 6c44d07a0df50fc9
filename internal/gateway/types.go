package gateway

// Wire types of the deposit-pay gateway API. Amounts are decimal strings;
// this service never parses them beyond validation.

type Payment struct {
	PayID          string `json:"payID"`
	OrderID        string `json:"orderID"`
	Receiver       string `json:"receiver"`
	Amount         string `json:"amount"`
	OriginalAmount string `json:"originalAmount"`
	MaxFeeAmount   string `json:"maxFeeAmount"`
	Deadline       string `json:"deadline"`
}

type Chain struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type Token struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

type ReceiveTx struct {
	Chain       Chain  `json:"chain"`
	TxID        string `json:"txID"`
	ConfirmedAt string `json:"confirmedAt"`
	Amount      string `json:"amount"`
	FeeAmount   string `json:"feeAmount"`
	Token       Token  `json:"token"`
}

// PaymentResponse is the authoritative order record as the gateway sees
// it, returned by both the create and fetch calls.
type PaymentResponse struct {
	Status         string     `json:"status"`
	Payment        Payment    `json:"payment"`
	Owner          string     `json:"owner"`
	DepositAddress string     `json:"depositAddress"`
	CallID         int64      `json:"callID"`
	ReceiveTx      *ReceiveTx `json:"receiveTx"`
}
