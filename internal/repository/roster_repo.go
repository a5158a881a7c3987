package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"joinus/partyboard/internal/model"
)

// RosterRepository applies membership changes together with their activity
// log entries, so a committed roster change always has its log row.
//
// Join and Leave return roster.ErrClosed, roster.ErrAlreadyJoined or
// roster.ErrFull when the rules reject the change; nothing is written then.
type RosterRepository interface {
	// Seed stores a new recruitment with its initial members and one join
	// entry per member.
	Seed(ctx context.Context, rec *model.Recruitment, memberIDs []string, at time.Time) error
	Join(ctx context.Context, recruitmentID uuid.UUID, memberID string, at time.Time) error
	// Leave reports whether the member was on the roster. A non-member leave
	// writes nothing.
	Leave(ctx context.Context, recruitmentID uuid.UUID, memberID string, at time.Time) (bool, error)
}
