package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Contract struct {
	ID           string    `json:"id"`
	CreatedBy    string    `json:"created_by"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	TargetPayout float64   `json:"target_payout"`
	ActualPayout float64   `json:"actual_payout"`
	Location     string    `json:"location"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Participant struct {
	ID              string    `json:"id"`
	ContractID      string    `json:"contract_id"`
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	SharePercentage float64   `json:"share_percentage"`
	ManualOverride  bool      `json:"manual_share_override"`
	JoinedAt        time.Time `json:"joined_at"`
}

// ShareUpdate is a share to persist. Pin also marks it as manually overridden.
type ShareUpdate struct {
	ParticipantID   string
	SharePercentage float64
	Pin             bool
}

// SharePlan decides the share updates for a contract's current participants.
// Returning an error rolls back the transaction it runs in.
type SharePlan func([]Participant) ([]ShareUpdate, error)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const contractColumns = `id, created_by, title, description, type, status, target_payout, actual_payout, location, created_at, updated_at`

func scanContract(row interface{ Scan(...any) error }) (*Contract, error) {
	var c Contract
	if err := row.Scan(&c.ID, &c.CreatedBy, &c.Title, &c.Description, &c.Type, &c.Status,
		&c.TargetPayout, &c.ActualPayout, &c.Location, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateContract inserts c and enrols its creator as leader holding the full share.
func (db *DB) CreateContract(ctx context.Context, c Contract) (*Contract, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanContract(tx.QueryRow(ctx,
		`INSERT INTO contracts (id, created_by, title, description, type, status, target_payout, location)
		 VALUES ($1, $2, $3, $4, $5, 'planning', $6, $7)
		 RETURNING `+contractColumns,
		uuid.NewString(), c.CreatedBy, c.Title, c.Description, c.Type, c.TargetPayout, c.Location,
	))
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO contract_participants (id, contract_id, user_id, role, share_percentage)
		 VALUES ($1, $2, $3, 'leader', 100)`,
		uuid.NewString(), created.ID, c.CreatedBy,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (db *DB) GetContract(ctx context.Context, id string) (*Contract, error) {
	return scanContract(db.pool.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
}

// ListContracts returns contracts newest first, optionally filtered by status.
func (db *DB) ListContracts(ctx context.Context, status string) ([]Contract, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts
		 WHERE ($1::text = '' OR status = $1::text)
		 ORDER BY created_at DESC`,
		status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (db *DB) UpdateContractStatus(ctx context.Context, id, status string) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE contracts SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTargetPayout changes the UEC amount the shares are paid out of.
func (db *DB) UpdateTargetPayout(ctx context.Context, id string, amount float64) error {
	return db.execOne(ctx,
		`UPDATE contracts SET target_payout = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id, amount,
	)
}

// DeleteContract removes a contract; participants and contributions cascade.
func (db *DB) DeleteContract(ctx context.Context, id string) error {
	return db.execOne(ctx, `DELETE FROM contracts WHERE id = $1`, id)
}

// Participants returns a contract's participants in join order.
func (db *DB) Participants(ctx context.Context, contractID string) ([]Participant, error) {
	return participants(ctx, db.pool, contractID)
}

func participants(ctx context.Context, q querier, contractID string) ([]Participant, error) {
	rows, err := q.Query(ctx,
		`SELECT p.id, p.contract_id, p.user_id, u.discord_username, p.role,
		        p.share_percentage, p.manual_share_override, p.joined_at
		 FROM contract_participants p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.contract_id = $1
		 ORDER BY p.joined_at, p.id`,
		contractID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.ContractID, &p.UserID, &p.Username, &p.Role,
			&p.SharePercentage, &p.ManualOverride, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) AddParticipant(ctx context.Context, contractID, userID, role string) (*Participant, error) {
	p := Participant{ContractID: contractID, UserID: userID, Role: role}
	err := db.pool.QueryRow(ctx,
		`WITH inserted AS (
			INSERT INTO contract_participants (id, contract_id, user_id, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id, joined_at, user_id
		 )
		 SELECT i.id, i.joined_at, u.discord_username
		 FROM inserted i JOIN users u ON u.id = i.user_id`,
		uuid.NewString(), contractID, userID, role,
	).Scan(&p.ID, &p.JoinedAt, &p.Username)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrDuplicate
		case isForeignKeyViolation(err):
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (db *DB) RemoveParticipant(ctx context.Context, contractID, participantID string) error {
	ct, err := db.pool.Exec(ctx,
		`DELETE FROM contract_participants WHERE contract_id = $1 AND id = $2`,
		contractID, participantID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearShareOverride hands the participant's share back to auto-distribution.
func (db *DB) ClearShareOverride(ctx context.Context, contractID, participantID string) error {
	return db.execOne(ctx,
		`UPDATE contract_participants SET manual_share_override = FALSE
		 WHERE contract_id = $1 AND id = $2`,
		contractID, participantID,
	)
}

// ApplyShares locks the contract row, hands its participants to plan and
// writes the updates plan returns, all in one transaction. Concurrent calls
// for the same contract are serialised, so every plan sees the rows as the
// previous one left them. It returns the participants as written.
func (db *DB) ApplyShares(ctx context.Context, contractID string, plan SharePlan) ([]Participant, error) {
	var out []Participant
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		var id string
		if err := tx.QueryRow(ctx,
			`SELECT id FROM contracts WHERE id = $1 FOR UPDATE`, contractID,
		).Scan(&id); err != nil {
			return notFound(err)
		}

		ps, err := participants(ctx, tx, contractID)
		if err != nil {
			return err
		}
		updates, err := plan(ps)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			batch := &pgx.Batch{}
			for _, u := range updates {
				batch.Queue(
					`UPDATE contract_participants
					 SET share_percentage = $3, manual_share_override = manual_share_override OR $4
					 WHERE contract_id = $1 AND id = $2`,
					contractID, u.ParticipantID, u.SharePercentage, u.Pin,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return err
			}
		}
		out = applyUpdates(ps, updates)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyUpdates(ps []Participant, updates []ShareUpdate) []Participant {
	byID := make(map[string]ShareUpdate, len(updates))
	for _, u := range updates {
		byID[u.ParticipantID] = u
	}
	for i := range ps {
		if u, ok := byID[ps[i].ID]; ok {
			ps[i].SharePercentage = u.SharePercentage
			ps[i].ManualOverride = ps[i].ManualOverride || u.Pin
		}
	}
	return ps
}

func (db *DB) execOne(ctx context.Context, sql string, args ...any) error {
	ct, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
