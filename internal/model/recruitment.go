package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecruitmentStatus string

const (
	RecruitmentStatusOpen      RecruitmentStatus = "open"
	RecruitmentStatusCancelled RecruitmentStatus = "cancelled"
)

// Recruitment is one capacity- and deadline-bounded group-formation session.
type Recruitment struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	MessageRef      string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"message_ref"`
	GuildID         string            `gorm:"type:varchar(32);not null;index" json:"guild_id"`
	CreatorID       string            `gorm:"type:varchar(32);not null" json:"creator_id"`
	PartyType       string            `gorm:"type:varchar(128);not null" json:"party_type"`
	MaxParticipants int               `gorm:"not null" json:"max_participants"`
	Status          RecruitmentStatus `gorm:"type:varchar(16);not null;default:open" json:"status"`
	Deadline        time.Time         `gorm:"not null" json:"deadline"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (Recruitment) TableName() string { return "recruitments" }

func (r *Recruitment) IsOpen() bool { return r.Status == RecruitmentStatusOpen }

// Validate checks the fields every stored recruitment must carry.
func (r *Recruitment) Validate() error {
	const entity = "recruitment"
	if r.ID == uuid.Nil {
		return &DecodeError{Entity: entity, Field: "id", Reason: "is empty"}
	}
	if r.MessageRef == "" {
		return &DecodeError{Entity: entity, Field: "message_ref", Reason: "is empty"}
	}
	if err := requireSnowflake(entity, "guild_id", r.GuildID); err != nil {
		return err
	}
	if err := requireSnowflake(entity, "creator_id", r.CreatorID); err != nil {
		return err
	}
	if r.MaxParticipants < 1 {
		return &DecodeError{Entity: entity, Field: "max_participants", Reason: "must be at least 1"}
	}
	switch r.Status {
	case RecruitmentStatusOpen, RecruitmentStatusCancelled:
	default:
		return &DecodeError{Entity: entity, Field: "status", Reason: "has unknown value " + string(r.Status)}
	}
	if r.Deadline.IsZero() {
		return &DecodeError{Entity: entity, Field: "deadline", Reason: "is empty"}
	}
	return nil
}

func (r *Recruitment) AfterFind(*gorm.DB) error { return r.Validate() }

// RecruitmentUpdate is a partial update; nil fields are left untouched.
type RecruitmentUpdate struct {
	MessageRef      *string
	PartyType       *string
	MaxParticipants *int
	Status          *RecruitmentStatus
	Deadline        *time.Time
}

func (u RecruitmentUpdate) Apply(r *Recruitment) {
	if u.MessageRef != nil {
		r.MessageRef = *u.MessageRef
	}
	if u.PartyType != nil {
		r.PartyType = *u.PartyType
	}
	if u.MaxParticipants != nil {
		r.MaxParticipants = *u.MaxParticipants
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Deadline != nil {
		r.Deadline = *u.Deadline
	}
}

// Columns maps the set fields to column names for a gorm map update.
func (u RecruitmentUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.MessageRef != nil {
		cols["message_ref"] = *u.MessageRef
	}
	if u.PartyType != nil {
		cols["party_type"] = *u.PartyType
	}
	if u.MaxParticipants != nil {
		cols["max_participants"] = *u.MaxParticipants
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Deadline != nil {
		cols["deadline"] = *u.Deadline
	}
	return cols
}
