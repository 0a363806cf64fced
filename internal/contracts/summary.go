package contracts

import (
	"math"

	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/notify"
	"github.com/onyxservices/dispatch/internal/shares"
)

type ParticipantShare struct {
	db.Participant
	// Payout is the UEC value of the share of the target payout.
	Payout float64 `json:"payout"`
}

type Summary struct {
	Contract     db.Contract        `json:"contract"`
	Participants []ParticipantShare `json:"participants"`
	TotalShare   float64            `json:"total_share"`
	// Balanced is false when the shares do not add up to 100%.
	Balanced bool `json:"balanced"`
}

func newSummary(c *db.Contract, ps []db.Participant) *Summary {
	sum := &Summary{Contract: *c, Participants: make([]ParticipantShare, 0, len(ps))}
	for _, p := range ps {
		sum.Participants = append(sum.Participants, ParticipantShare{
			Participant: p,
			Payout:      shares.Payout(c.TargetPayout, p.SharePercentage),
		})
	}
	sum.TotalShare = shares.Total(toShares(ps))
	sum.Balanced = len(ps) == 0 || math.Abs(sum.TotalShare-shares.FullShare) <= 1e-6
	return sum
}

// RoleLeader is the participant role that may manage a contract alongside
// its creator.
const RoleLeader = "leader"

// ManagedBy reports whether u may edit the contract: managers, the creator
// and participants enrolled as leader.
func (s *Summary) ManagedBy(u *db.User) bool {
	if u.Role.CanManage() || s.Contract.CreatedBy == u.ID {
		return true
	}
	for _, p := range s.Participants {
		if p.UserID == u.ID && p.Role == RoleLeader {
			return true
		}
	}
	return false
}

// Includes reports whether userID is enrolled in the contract.
func (s *Summary) Includes(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Summary) event() notify.SharesRecalculated {
	ev := notify.SharesRecalculated{ContractTitle: s.Contract.Title}
	for _, p := range s.Participants {
		ev.Shares = append(ev.Shares, notify.ShareLine{
			Name:            p.Username,
			SharePercentage: p.SharePercentage,
			Payout:          p.Payout,
			Manual:          p.ManualOverride,
		})
	}
	return ev
}
