package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/onyxservices/dispatch/internal/roles"
)

type User struct {
	ID              string           `json:"id"`
	DiscordID       string           `json:"discord_id"`
	DiscordUsername string           `json:"discord_username"`
	Role            roles.SystemRole `json:"role"`
	Verified        bool             `json:"verified"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
	LastLogin       time.Time        `json:"last_login"`
}

const userColumns = `id, discord_id, discord_username, role, verified, is_active, created_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.DiscordID, &u.DiscordUsername, &u.Role, &u.Verified, &u.IsActive, &u.CreatedAt, &u.LastLogin); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (db *DB) GetUserByDiscordID(ctx context.Context, discordID string) (*User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE discord_id = $1`, discordID))
}

// CreateUser inserts a user. A second user with the same Discord id yields ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, discordID, username string, role roles.SystemRole, verified bool) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO users (id, discord_id, discord_username, role, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		uuid.NewString(), discordID, username, string(role), verified,
	))
	if err != nil && isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return u, err
}

// UpdateUserRole stores a resolved role. An empty username leaves the stored one.
func (db *DB) UpdateUserRole(ctx context.Context, discordID, username string, role roles.SystemRole, verified bool) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE users
		 SET role = $2, verified = $3, discord_username = COALESCE(NULLIF($4, ''), discord_username)
		 WHERE discord_id = $1`,
		discordID, string(role), verified, username,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) TouchLogin(ctx context.Context, discordID string) error {
	_, err := db.pool.Exec(ctx, `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE discord_id = $1`, discordID)
	return err
}

// ListUsers returns every user, most recent login first.
func (db *DB) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_login DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SetUserRole overrides a user's role and verified flag by hand.
func (db *DB) SetUserRole(ctx context.Context, id string, role roles.SystemRole, verified bool) (*User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`UPDATE users SET role = $2, verified = $3 WHERE id = $1 RETURNING `+userColumns,
		id, string(role), verified,
	))
}
