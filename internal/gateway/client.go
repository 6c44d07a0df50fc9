package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/brewpay/brewbot/internal/domain"
)

// ErrPaymentNotFound means the gateway has no record for the payment id.
// During reconciliation this is a transient absence, not a failure: the
// caller acknowledges and waits for the next notification.
var ErrPaymentNotFound = errors.New("payment not found at gateway")

// Client talks to the deposit-pay gateway. Any transport-level failure is
// reported as domain.ErrGatewayUnavailable so callers can distinguish
// "could not ask" from "asked and it is not there".
type Client struct {
	apiURL     string
	paymentURL string
	secret     string
	receiver   string
	notifyURL  string
	brand      string
	redirect   string
	httpClient *http.Client
}

type Options struct {
	APIURL     string
	PaymentURL string
	Secret     string
	Receiver   string
	NotifyURL  string
	Brand      string
	Redirect   string
}

func NewClient(opts Options, httpClient *http.Client) *Client {
	return &Client{
		apiURL:     opts.APIURL,
		paymentURL: opts.PaymentURL,
		secret:     opts.Secret,
		receiver:   opts.Receiver,
		notifyURL:  opts.NotifyURL,
		brand:      opts.Brand,
		redirect:   opts.Redirect,
		httpClient: httpClient,
	}
}

// NewOrderRef mints a globally unique order reference. UUIDv7 embeds a
// millisecond timestamp in the high bits, so references sort by creation
// time; the hex form matches what the gateway accepts as an order id.
func (c *Client) NewOrderRef() string {
	id := uuid.Must(uuid.NewV7())
	return "0x" + hex.EncodeToString(id[:])
}

type createRequest struct {
	Payment   createPayment `json:"payment"`
	NotifyURL string        `json:"notifyURL"`
}

type createPayment struct {
	OrderID  string `json:"orderID"`
	Receiver string `json:"receiver"`
	Amount   string `json:"amount"`
	Deadline string `json:"deadline"`
}

// CreateDeposit opens a deposit-pay order for amount, due at deadline,
// tagged with the caller-minted order reference.
func (c *Client) CreateDeposit(ctx context.Context, orderRef, amount string, deadline time.Time) (*PaymentResponse, error) {
	payload := createRequest{
		Payment: createPayment{
			OrderID:  orderRef,
			Receiver: c.receiver,
			Amount:   amount,
			Deadline: deadline.UTC().Format(time.RFC3339),
		},
		NotifyURL: c.notifyURL,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal deposit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/depositPay", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create deposit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: depositPay returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out PaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode deposit response: %w", err)
	}
	return &out, nil
}

// GetDeposit fetches the authoritative order record by payment id.
func (c *Client) GetDeposit(ctx context.Context, payID string) (*PaymentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/depositPays/"+url.PathEscape(payID), nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPaymentNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: depositPays returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out PaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode fetch response: %w", err)
	}
	return &out, nil
}

// PaymentURL builds the client-facing deep link to the hosted payment
// page. It is a convenience link, not a security boundary.
func (c *Client) PaymentURL(item domain.Item, payID string) string {
	params := url.Values{}
	params.Set("payID", payID)
	params.Set("brand", c.brand)
	params.Set("memo", item.Name)
	params.Set("redirect_url", c.redirect)
	params.Set("currency", "USD")
	return c.paymentURL + "/payment_qrcode?" + params.Encode()
}

// Settlement converts the gateway record's settlement fields into the
// persisted shape.
func (p *PaymentResponse) Settlement() domain.Settlement {
	st := domain.Settlement{
		Owner:          p.Owner,
		DepositAddress: p.DepositAddress,
		CallID:         p.CallID,
	}
	if p.ReceiveTx != nil {
		st.ReceiveTxID = p.ReceiveTx.TxID
		st.ReceiveChainID = p.ReceiveTx.Chain.ID
		st.ReceiveChainName = p.ReceiveTx.Chain.Name
		st.ReceiveTokenSymbol = p.ReceiveTx.Token.Symbol
		st.ReceiveTokenAddress = p.ReceiveTx.Token.Address
	}
	return st
}
