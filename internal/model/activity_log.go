package model

import (
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionJoin  ActionType = "join"
	ActionLeave ActionType = "leave"
)

// ActivityLog is an append-only record of a roster change. It is only
// counted, never replayed into a roster.
type ActivityLog struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	MemberID      string     `gorm:"type:varchar(32);not null;index:idx_activity_member_action_time,priority:1" json:"member_id"`
	RecruitmentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"recruitment_id"`
	GuildID       string     `gorm:"type:varchar(32);not null;index" json:"guild_id"`
	Action        ActionType `gorm:"type:varchar(8);not null;index:idx_activity_member_action_time,priority:2" json:"action"`
	CreatedAt     time.Time  `gorm:"not null;index:idx_activity_member_action_time,priority:3" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

// NewActivityLog stamps a log entry for a roster change that happened at.
func NewActivityLog(memberID string, rec *Recruitment, action ActionType, at time.Time) ActivityLog {
	return ActivityLog{
		ID:            uuid.New(),
		MemberID:      memberID,
		RecruitmentID: rec.ID,
		GuildID:       rec.GuildID,
		Action:        action,
		CreatedAt:     at,
	}
}
