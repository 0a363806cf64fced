package contracts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/onyxservices/dispatch/internal/db"
)

var ErrInvalidContribution = errors.New("invalid contribution")

// ContributionTypes lists what a member can bring to a contract.
var ContributionTypes = []string{
	"supplies", "materials", "equipment", "ship", "fuel",
	"ammunition", "medical_supplies", "time", "other",
}

type NewContribution struct {
	Type           string
	ItemName       string
	Quantity       int
	EstimatedValue float64
	Notes          string
}

// AddContribution records something actor brought to the contract.
// Quantity defaults to 1.
func (s *Service) AddContribution(ctx context.Context, actor *db.User, contractID string, in NewContribution) (*db.Contribution, error) {
	if !slices.Contains(ContributionTypes, in.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidContribution, in.Type)
	}
	if strings.TrimSpace(in.ItemName) == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidContribution)
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 || in.EstimatedValue < 0 || math.IsNaN(in.EstimatedValue) {
		return nil, fmt.Errorf("%w: quantity and value must not be negative", ErrInvalidContribution)
	}
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}

	c, err := s.store.AddContribution(ctx, db.Contribution{
		ContractID:     contractID,
		UserID:         actor.ID,
		Type:           in.Type,
		ItemName:       strings.TrimSpace(in.ItemName),
		Quantity:       in.Quantity,
		EstimatedValue: in.EstimatedValue,
		Notes:          in.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("add contribution: %w", err)
	}
	return c, nil
}

func (s *Service) Contributions(ctx context.Context, contractID string) ([]db.Contribution, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.store.Contributions(ctx, contractID)
}
