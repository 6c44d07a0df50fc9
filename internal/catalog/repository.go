package catalog

import (
	"context"
	"database/sql"

	"github.com/brewpay/brewbot/internal/domain"
)

// Repository reads the purchasable items. The catalog is owned by
// configuration: Seed replaces the table contents at boot.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, price_cents
		FROM items
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetByID returns (nil, nil) when the item does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	item := &domain.Item{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price_cents
		FROM items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Description, &item.PriceCents)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// Seed wipes the table and inserts items, keeping the catalog in lockstep
// with whatever the deployment configures.
func (r *Repository) Seed(ctx context.Context, items []domain.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return err
	}
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO items (id, name, description, price_cents)
			VALUES ($1, $2, $3, $4)
		`, item.ID, item.Name, item.Description, item.PriceCents)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DefaultItems is the out-of-the-box menu used when no catalog has been
// provisioned.
func DefaultItems() []domain.Item {
	return []domain.Item{
		{ID: 1, Name: "americano", Description: "espresso with hot water", PriceCents: 500},
		{ID: 2, Name: "latte", Description: "espresso with steamed milk", PriceCents: 700},
		{ID: 3, Name: "cold brew", Description: "slow-steeped cold coffee", PriceCents: 800},
		{ID: 4, Name: "mocha", Description: "espresso with chocolate and milk", PriceCents: 900},
	}
}
