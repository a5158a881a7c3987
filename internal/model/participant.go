package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is one member on a recruitment's live roster.
type Participant struct {
	RecruitmentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"recruitment_id"`
	MemberID      string    `gorm:"type:varchar(32);primaryKey" json:"member_id"`
	JoinedAt      time.Time `gorm:"not null" json:"joined_at"`
}

func (Participant) TableName() string { return "participants" }

func (p *Participant) Validate() error {
	if p.RecruitmentID == uuid.Nil {
		return &DecodeError{Entity: "participant", Field: "recruitment_id", Reason: "is empty"}
	}
	if err := requireSnowflake("participant", "member_id", p.MemberID); err != nil {
		return err
	}
	if p.JoinedAt.IsZero() {
		return &DecodeError{Entity: "participant", Field: "joined_at", Reason: "is empty"}
	}
	return nil
}

func (p *Participant) AfterFind(*gorm.DB) error { return p.Validate() }

// MemberIDs flattens a roster to its member ids, preserving order.
func MemberIDs(participants []Participant) []string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.MemberID)
	}
	return ids
}
