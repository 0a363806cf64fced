package rolesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/metrics"
)

type Report struct {
	Total   int      `json:"total"`
	Synced  int      `json:"synced"`
	Updated int      `json:"updated"`
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}

// SyncGuild resolves and stores the role of every guild member. A member that
// fails is recorded in the report and the sync carries on.
func (s *Service) SyncGuild(ctx context.Context) (*Report, error) {
	mappings, err := s.store.RoleMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load role mappings: %w", err)
	}
	members, err := s.members.Members(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Total: len(members), Errors: []string{}}
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		resolved, _ := s.resolve(m, mappings)
		metrics.RoleResolutions.WithLabelValues("sync", string(resolved.SystemRole)).Inc()
		username := m.DisplayName()

		_, err := s.store.GetUserByDiscordID(ctx, m.UserID)
		switch {
		case errors.Is(err, db.ErrNotFound):
			_, err = s.store.CreateUser(ctx, m.UserID, username, resolved.SystemRole, resolved.Verified)
			switch {
			case errors.Is(err, db.ErrDuplicate):
				report.Errors = append(report.Errors, fmt.Sprintf("Duplicate discord_id for %s, skipping", username))
			case err != nil:
				report.Errors = append(report.Errors, fmt.Sprintf("Failed to create %s: %v", username, err))
			default:
				report.Created++
			}
		case err != nil:
			report.Errors = append(report.Errors, fmt.Sprintf("Error processing member %s: %v", username, err))
			continue
		default:
			if err := s.store.UpdateUserRole(ctx, m.UserID, username, resolved.SystemRole, resolved.Verified); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("Failed to update %s: %v", username, err))
			} else {
				report.Updated++
			}
		}
		report.Synced++
	}

	metrics.RoleSyncErrors.Add(float64(len(report.Errors)))
	s.log.Info().
		Int("total", report.Total).
		Int("updated", report.Updated).
		Int("created", report.Created).
		Int("errors", len(report.Errors)).
		Msg("guild role sync finished")
	return report, nil
}
