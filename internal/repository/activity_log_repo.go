package repository

import (
	"context"
	"time"

	"joinus/partyboard/internal/model"
)

// ActivityLogRepository appends and counts roster history. Period bounds are
// inclusive on both ends.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *model.ActivityLog) error
	CountJoinsInPeriod(ctx context.Context, memberID string, start, end time.Time) (int64, error)
	CountGuildRecruitmentsInPeriod(ctx context.Context, guildID string, start, end time.Time) (int64, error)
}
