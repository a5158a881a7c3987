package model

import (
	"time"

	"gorm.io/gorm"
)

// LinkedAccount ties a platform member to a Riot account. Tokens are stored
// sealed; see pkg/crypto.
type LinkedAccount struct {
	MemberID           string     `gorm:"type:varchar(32);primaryKey" json:"member_id"`
	RiotPUUID          string     `gorm:"type:varchar(128);not null;index" json:"riot_puuid"`
	SealedAccessToken  string     `gorm:"type:text" json:"-"`
	SealedRefreshToken string     `gorm:"type:text" json:"-"`
	RankTier           string     `gorm:"type:varchar(32)" json:"rank_tier,omitempty"`
	RankCheckedAt      *time.Time `json:"rank_checked_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (LinkedAccount) TableName() string { return "linked_accounts" }

func (a *LinkedAccount) Validate() error {
	if err := requireSnowflake("linked_account", "member_id", a.MemberID); err != nil {
		return err
	}
	if a.RiotPUUID == "" {
		return &DecodeError{Entity: "linked_account", Field: "riot_puuid", Reason: "is empty"}
	}
	return nil
}

func (a *LinkedAccount) AfterFind(*gorm.DB) error { return a.Validate() }
