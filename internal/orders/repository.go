package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/brewpay/brewbot/internal/domain"
)

// Repository persists payment orders. Orders are inserted once and then
// mutated only through CompareAndUpdate, which applies the status and
// settlement details together in a single conditional statement.
type Repository struct {
	db      *sql.DB
	nowFunc func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, nowFunc: time.Now}
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	now := r.nowFunc().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, pay_id, status, receiver, amount, original_amount,
			max_fee_amount, chat_id, deadline, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, order.ID, order.PayID, order.Status, order.Receiver, order.Amount,
		order.OriginalAmount, order.MaxFeeAmount, order.ChatID,
		order.Deadline, now)
	return err
}

// GetByPayID fetches an order by the gateway-issued payment id. Returns
// (nil, nil) when no order matches.
func (r *Repository) GetByPayID(ctx context.Context, payID string) (*domain.Order, error) {
	return r.get(ctx, `pay_id`, payID)
}

// GetByID fetches an order by the internal reference. Returns (nil, nil)
// when no order matches.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, `id`, id)
}

func (r *Repository) get(ctx context.Context, column, key string) (*domain.Order, error) {
	order := &domain.Order{}
	var (
		owner, depositAddr, txID, chainName, tokenSymbol, tokenAddr sql.NullString
		callID, chainID                                             sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, pay_id, status, receiver, amount, original_amount,
		       max_fee_amount, chat_id, owner, deposit_address, call_id,
		       receive_tx_id, receive_chain_id, receive_chain_name,
		       receive_token_symbol, receive_token_address,
		       deadline, created_at, updated_at
		FROM orders
		WHERE `+column+` = $1
	`, key).Scan(
		&order.ID, &order.PayID, &order.Status, &order.Receiver,
		&order.Amount, &order.OriginalAmount, &order.MaxFeeAmount,
		&order.ChatID, &owner, &depositAddr, &callID, &txID, &chainID,
		&chainName, &tokenSymbol, &tokenAddr,
		&order.Deadline, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	order.Settlement = domain.Settlement{
		Owner:               owner.String,
		DepositAddress:      depositAddr.String,
		CallID:              callID.Int64,
		ReceiveTxID:         txID.String,
		ReceiveChainID:      chainID.Int64,
		ReceiveChainName:    chainName.String,
		ReceiveTokenSymbol:  tokenSymbol.String,
		ReceiveTokenAddress: tokenAddr.String,
	}
	return order, nil
}

// CompareAndUpdate moves the order identified by payID from the observed
// status to next, writing the settlement details in the same statement.
// It reports false when the stored status no longer matches observed,
// which means a concurrent delivery got there first.
func (r *Repository) CompareAndUpdate(ctx context.Context, payID string, observed, next domain.Status, st domain.Settlement) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    owner = NULLIF($2, ''),
		    deposit_address = NULLIF($3, ''),
		    call_id = NULLIF($4, 0),
		    receive_tx_id = NULLIF($5, ''),
		    receive_chain_id = NULLIF($6, 0),
		    receive_chain_name = NULLIF($7, ''),
		    receive_token_symbol = NULLIF($8, ''),
		    receive_token_address = NULLIF($9, ''),
		    updated_at = $10
		WHERE pay_id = $11 AND status = $12
	`, next, st.Owner, st.DepositAddress, st.CallID, st.ReceiveTxID,
		st.ReceiveChainID, st.ReceiveChainName, st.ReceiveTokenSymbol,
		st.ReceiveTokenAddress, r.nowFunc().UTC(), payID, observed)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
