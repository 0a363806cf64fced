package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Contribution is something a member brought to a contract: ships, fuel,
// supplies or time.
type Contribution struct {
	ID             string    `json:"id"`
	ContractID     string    `json:"contract_id"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Type           string    `json:"contribution_type"`
	ItemName       string    `json:"item_name"`
	Quantity       int       `json:"quantity"`
	EstimatedValue float64   `json:"estimated_value"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

func (db *DB) AddContribution(ctx context.Context, c Contribution) (*Contribution, error) {
	c.ID = uuid.NewString()
	err := db.pool.QueryRow(ctx,
		`WITH inserted AS (
			INSERT INTO contract_contributions
				(id, contract_id, user_id, contribution_type, item_name, quantity, estimated_value, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING user_id, created_at
		 )
		 SELECT i.created_at, u.discord_username
		 FROM inserted i JOIN users u ON u.id = i.user_id`,
		c.ID, c.ContractID, c.UserID, c.Type, c.ItemName, c.Quantity, c.EstimatedValue, c.Notes,
	).Scan(&c.CreatedAt, &c.Username)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Contributions returns a contract's contributions newest first.
func (db *DB) Contributions(ctx context.Context, contractID string) ([]Contribution, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT c.id, c.contract_id, c.user_id, u.discord_username, c.contribution_type,
		        c.item_name, c.quantity, c.estimated_value, c.notes, c.created_at
		 FROM contract_contributions c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.contract_id = $1
		 ORDER BY c.created_at DESC, c.id`,
		contractID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.ID, &c.ContractID, &c.UserID, &c.Username, &c.Type,
			&c.ItemName, &c.Quantity, &c.EstimatedValue, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
