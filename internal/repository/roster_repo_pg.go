package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/roster"
)

type pgRosterRepository struct {
	db *gorm.DB
}

func NewPGRosterRepository(db *gorm.DB) RosterRepository {
	return &pgRosterRepository{db: db}
}

func (r *pgRosterRepository) Seed(ctx context.Context, rec *model.Recruitment, memberIDs []string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if len(memberIDs) == 0 {
			return nil
		}
		if err := tx.Create(newParticipants(rec.ID, memberIDs, at)).Error; err != nil {
			return err
		}
		logs := make([]model.ActivityLog, 0, len(memberIDs))
		for _, id := range memberIDs {
			logs = append(logs, model.NewActivityLog(id, rec, model.ActionJoin, at))
		}
		return tx.Create(&logs).Error
	})
}

// Join locks the recruitment row so concurrent joins on the same recruitment
// see each other's inserts before the capacity check.
func (r *pgRosterRepository) Join(ctx context.Context, recruitmentID uuid.UUID, memberID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, members, err := lockRoster(tx, recruitmentID)
		if err != nil {
			return err
		}
		if err := roster.CheckJoin(rec, members, memberID); err != nil {
			return err
		}
		p := model.Participant{RecruitmentID: rec.ID, MemberID: memberID, JoinedAt: at}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		entry := model.NewActivityLog(memberID, rec, model.ActionJoin, at)
		return tx.Create(&entry).Error
	})
}

func (r *pgRosterRepository) Leave(
	ctx context.Context, recruitmentID uuid.UUID, memberID string, at time.Time,
) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.Recruitment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", recruitmentID).Error; err != nil {
			return err
		}
		if err := roster.CheckLeave(&rec); err != nil {
			return err
		}
		res := tx.Delete(&model.Participant{}, "recruitment_id = ? AND member_id = ?", recruitmentID, memberID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		entry := model.NewActivityLog(memberID, &rec, model.ActionLeave, at)
		return tx.Create(&entry).Error
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func lockRoster(tx *gorm.DB, recruitmentID uuid.UUID) (*model.Recruitment, []string, error) {
	var rec model.Recruitment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", recruitmentID).Error; err != nil {
		return nil, nil, err
	}
	var members []string
	err := tx.Model(&model.Participant{}).
		Where("recruitment_id = ?", recruitmentID).
		Pluck("member_id", &members).Error
	if err != nil {
		return nil, nil, err
	}
	return &rec, members, nil
}
