package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"joinus/partyboard/internal/model"
)

// ParticipantRepository is raw roster storage. It does not enforce capacity
// and writes no activity log; see RosterRepository for that.
type ParticipantRepository interface {
	Add(ctx context.Context, p *model.Participant) error
	AddBulk(ctx context.Context, recruitmentID uuid.UUID, memberIDs []string, at time.Time) error
	// Remove reports whether a row was deleted.
	Remove(ctx context.Context, recruitmentID uuid.UUID, memberID string) (bool, error)
	// ListByRecruitment returns the roster in join order.
	ListByRecruitment(ctx context.Context, recruitmentID uuid.UUID) ([]model.Participant, error)
}
