package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/onyxservices/dispatch/internal/roles"
)

// RoleMappings returns every configured mapping, oldest first.
func (db *DB) RoleMappings(ctx context.Context) ([]roles.Mapping, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, discord_role_id, discord_role_name, system_role, auto_verify
		 FROM discord_role_mappings
		 ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roles.Mapping
	for rows.Next() {
		var m roles.Mapping
		if err := rows.Scan(&m.ID, &m.DiscordRoleID, &m.DiscordRoleName, &m.SystemRole, &m.AutoVerify); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) CreateRoleMapping(ctx context.Context, m roles.Mapping) (*roles.Mapping, error) {
	m.ID = uuid.NewString()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO discord_role_mappings (id, discord_role_id, discord_role_name, system_role, auto_verify)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.DiscordRoleID, m.DiscordRoleName, string(m.SystemRole), m.AutoVerify,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &m, nil
}

func (db *DB) DeleteRoleMapping(ctx context.Context, id string) error {
	ct, err := db.pool.Exec(ctx, `DELETE FROM discord_role_mappings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoleMappingAutoVerify turns automatic verification on or off for a mapping.
func (db *DB) SetRoleMappingAutoVerify(ctx context.Context, id string, autoVerify bool) (*roles.Mapping, error) {
	var m roles.Mapping
	err := db.pool.QueryRow(ctx,
		`UPDATE discord_role_mappings SET auto_verify = $2 WHERE id = $1
		 RETURNING id, discord_role_id, discord_role_name, system_role, auto_verify`,
		id, autoVerify,
	).Scan(&m.ID, &m.DiscordRoleID, &m.DiscordRoleName, &m.SystemRole, &m.AutoVerify)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}
