// Package contracts manages contracts, their participants and payout shares.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/metrics"
	"github.com/onyxservices/dispatch/internal/notify"
	"github.com/onyxservices/dispatch/internal/shares"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidShare wraps *shares.InvalidShareError; nothing is persisted when it is returned.
	ErrInvalidShare  = errors.New("invalid contract shares")
	ErrInvalidStatus = errors.New("invalid contract status")
	ErrInvalidPayout = errors.New("invalid target payout")
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Store interface {
	GetUser(ctx context.Context, id string) (*db.User, error)
	GetContract(ctx context.Context, id string) (*db.Contract, error)
	ListContracts(ctx context.Context, status string) ([]db.Contract, error)
	CreateContract(ctx context.Context, c db.Contract) (*db.Contract, error)
	UpdateContractStatus(ctx context.Context, id, status string) error
	UpdateTargetPayout(ctx context.Context, id string, amount float64) error
	DeleteContract(ctx context.Context, id string) error
	Participants(ctx context.Context, contractID string) ([]db.Participant, error)
	AddParticipant(ctx context.Context, contractID, userID, role string) (*db.Participant, error)
	RemoveParticipant(ctx context.Context, contractID, participantID string) error
	ClearShareOverride(ctx context.Context, contractID, participantID string) error
	// ApplyShares runs plan against the participants and persists its updates
	// atomically with respect to other calls for the same contract.
	ApplyShares(ctx context.Context, contractID string, plan db.SharePlan) ([]db.Participant, error)
	AddContribution(ctx context.Context, c db.Contribution) (*db.Contribution, error)
	Contributions(ctx context.Context, contractID string) ([]db.Contribution, error)
}

type Notifier interface {
	Notify(ev notify.Event)
}

type Service struct {
	store    Store
	notifier Notifier
	log      zerolog.Logger
}

func NewService(store Store, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "contracts").Logger(),
	}
}

type NewContract struct {
	Title        string
	Description  string
	Type         string
	Location     string
	TargetPayout float64
}

// Create posts a contract with actor as its leader.
func (s *Service) Create(ctx context.Context, actor *db.User, in NewContract) (*db.Contract, error) {
	c, err := s.store.CreateContract(ctx, db.Contract{
		CreatedBy:    actor.ID,
		Title:        in.Title,
		Description:  in.Description,
		Type:         in.Type,
		Location:     in.Location,
		TargetPayout: in.TargetPayout,
	})
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	s.notifier.Notify(notify.ContractCreated{
		Title:        c.Title,
		Type:         c.Type,
		CreatedBy:    actor.DiscordUsername,
		Location:     c.Location,
		TargetPayout: c.TargetPayout,
		Description:  c.Description,
	})
	return c, nil
}

func (s *Service) List(ctx context.Context, status string) ([]db.Contract, error) {
	return s.store.ListContracts(ctx, status)
}

// UpdateStatus moves a contract to status.
func (s *Service) UpdateStatus(ctx context.Context, actor *db.User, contractID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateContractStatus(ctx, contractID, string(status)); err != nil {
		return err
	}
	s.notifier.Notify(notify.StatusChanged{
		ContractTitle: c.Title,
		OldStatus:     c.Status,
		NewStatus:     string(status),
		ChangedBy:     actor.DiscordUsername,
	})
	return nil
}

// UpdateTargetPayout changes the amount the shares are paid out of and
// returns the summary with the new payouts.
func (s *Service) UpdateTargetPayout(ctx context.Context, contractID string, amount float64) (*Summary, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayout, amount)
	}
	if err := s.store.UpdateTargetPayout(ctx, contractID, amount); err != nil {
		return nil, err
	}
	return s.Summary(ctx, contractID)
}

// Delete removes a contract with its participants and contributions.
func (s *Service) Delete(ctx context.Context, actor *db.User, contractID string) error {
	if err := s.store.DeleteContract(ctx, contractID); err != nil {
		return err
	}
	s.log.Info().Str("contract_id", contractID).Str("deleted_by", actor.ID).Msg("contract deleted")
	return nil
}

// AddParticipant enrols userID and re-splits the unpinned shares.
func (s *Service) AddParticipant(ctx context.Context, actor *db.User, contractID, userID, role string) (*Summary, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if role = strings.TrimSpace(role); role == "" {
		role = "member"
	}
	p, err := s.store.AddParticipant(ctx, contractID, userID, role)
	if err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}

	ev := notify.ParticipantUpdate{
		ContractTitle:   c.Title,
		ParticipantName: p.Username,
		ParticipantRole: p.Role,
		Action:          notify.ParticipantAdded,
		AddedBy:         actor.DiscordUsername,
	}
	if actor.ID == userID {
		ev.Action, ev.AddedBy = notify.ParticipantJoined, ""
	}
	s.notifier.Notify(ev)

	return s.recalculate(ctx, c)
}

// RemoveParticipant drops a participant and re-splits the unpinned shares.
func (s *Service) RemoveParticipant(ctx context.Context, contractID, participantID string) (*Summary, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveParticipant(ctx, contractID, participantID); err != nil {
		return nil, fmt.Errorf("remove participant: %w", err)
	}
	return s.recalculate(ctx, c)
}

// SetShare pins a participant's share. Other shares are not redistributed
// until the next recalculation, but a pin that would push the manual total
// past 100% is rejected before anything is written.
func (s *Service) SetShare(ctx context.Context, contractID, participantID string, share float64) (*Summary, error) {
	if math.IsNaN(share) || share < 0 || share > shares.FullShare {
		return nil, fmt.Errorf("%w: share must be between 0 and 100", ErrInvalidShare)
	}
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	ps, err := s.store.ApplyShares(ctx, contractID, func(ps []db.Participant) ([]db.ShareUpdate, error) {
		found := false
		proposed := toShares(ps)
		for i := range proposed {
			if proposed[i].ID == participantID {
				proposed[i].SharePercentage, proposed[i].ManualOverride = share, true
				found = true
			}
		}
		if !found {
			return nil, db.ErrNotFound
		}
		if _, err := shares.Allocate(proposed); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidShare, err)
		}
		return []db.ShareUpdate{{ParticipantID: participantID, SharePercentage: share, Pin: true}}, nil
	})
	if err != nil {
		return nil, err
	}
	return newSummary(c, ps), nil
}

// ResetShare returns a pinned share to auto-distribution.
func (s *Service) ResetShare(ctx context.Context, contractID, participantID string) (*Summary, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClearShareOverride(ctx, contractID, participantID); err != nil {
		return nil, err
	}
	return s.recalculate(ctx, c)
}

// Recalculate re-splits the unpinned shares of a contract.
func (s *Service) Recalculate(ctx context.Context, contractID string) (*Summary, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return s.recalculate(ctx, c)
}

func (s *Service) recalculate(ctx context.Context, c *db.Contract) (*Summary, error) {
	written := 0
	ps, err := s.store.ApplyShares(ctx, c.ID, func(ps []db.Participant) ([]db.ShareUpdate, error) {
		before := toShares(ps)
		after, err := shares.Allocate(before)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidShare, err)
		}
		changed := shares.Changed(before, after)
		updates := make([]db.ShareUpdate, 0, len(changed))
		for _, p := range changed {
			updates = append(updates, db.ShareUpdate{ParticipantID: p.ID, SharePercentage: p.SharePercentage})
		}
		written = len(updates)
		return updates, nil
	})
	switch {
	case errors.Is(err, ErrInvalidShare):
		metrics.ShareRecalculations.WithLabelValues("invalid").Inc()
		s.log.Warn().Err(err).Str("contract_id", c.ID).Msg("manual shares exceed 100%, not persisting")
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("update shares: %w", err)
	}

	sum := newSummary(c, ps)
	if written == 0 {
		metrics.ShareRecalculations.WithLabelValues("unchanged").Inc()
		return sum, nil
	}
	metrics.ShareRecalculations.WithLabelValues("applied").Inc()
	s.log.Debug().Str("contract_id", c.ID).Int("updated", written).Msg("shares recalculated")
	s.notifier.Notify(sum.event())
	return sum, nil
}

// Summary loads the contract with every participant's share and payout.
func (s *Service) Summary(ctx context.Context, contractID string) (*Summary, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return s.summary(ctx, c)
}

func (s *Service) summary(ctx context.Context, c *db.Contract) (*Summary, error) {
	ps, err := s.store.Participants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return newSummary(c, ps), nil
}

func toShares(ps []db.Participant) []shares.Participant {
	out := make([]shares.Participant, len(ps))
	for i, p := range ps {
		out[i] = shares.Participant{ID: p.ID, SharePercentage: p.SharePercentage, ManualOverride: p.ManualOverride}
	}
	return out
}
