//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/roster"
)

// Run with: PARTYBOARD_TEST_POSTGRES_DSN=... go test -tags integration ./internal/repository/
func openPostgresForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("PARTYBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PARTYBOARD_TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// seedRecruitment stores an open recruitment with the creator on its roster
// and removes every row it produced when the test ends.
func seedRecruitment(t *testing.T, db *gorm.DB, rosters RosterRepository, capacity int) *model.Recruitment {
	t.Helper()
	now := time.Now().UTC()
	rec := &model.Recruitment{
		ID:              uuid.New(),
		MessageRef:      uuid.NewString(),
		GuildID:         fmt.Sprintf("9%017d", now.UnixNano()%1e17),
		CreatorID:       member(0),
		PartyType:       "ranked",
		MaxParticipants: capacity,
		Status:          model.RecruitmentStatusOpen,
		Deadline:        now.Add(time.Hour),
	}
	if err := rosters.Seed(context.Background(), rec, []string{rec.CreatorID}, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() {
		db.Where("recruitment_id = ?", rec.ID).Delete(&model.Participant{})
		db.Where("recruitment_id = ?", rec.ID).Delete(&model.ActivityLog{})
		db.Where("id = ?", rec.ID).Delete(&model.Recruitment{})
	})
	return rec
}

func TestPGRosterConcurrentJoinsRespectCapacity(t *testing.T) {
	db := openPostgresForTest(t)
	rosters := NewPGRosterRepository(db)
	rec := seedRecruitment(t, db, rosters, 3)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		full int
	)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := rosters.Join(context.Background(), rec.ID, id, time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, roster.ErrFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(member(i))
	}
	wg.Wait()

	if wins != 2 || full != 18 {
		t.Fatalf("wins = %d, full = %d; want 2 and 18", wins, full)
	}
	var stored int64
	db.Model(&model.Participant{}).Where("recruitment_id = ?", rec.ID).Count(&stored)
	if stored != int64(rec.MaxParticipants) {
		t.Fatalf("stored participants = %d, want %d", stored, rec.MaxParticipants)
	}
	var joins int64
	db.Model(&model.ActivityLog{}).Where("recruitment_id = ? AND action = ?", rec.ID, model.ActionJoin).Count(&joins)
	if joins != 3 {
		t.Fatalf("join log entries = %d, want 3", joins)
	}
}

func TestPGRosterRejectsClosedRecruitment(t *testing.T) {
	db := openPostgresForTest(t)
	rosters := NewPGRosterRepository(db)
	rec := seedRecruitment(t, db, rosters, 2)

	cancelled := model.RecruitmentStatusCancelled
	if _, err := NewPGRecruitmentRepository(db).Update(context.Background(), rec.ID,
		model.RecruitmentUpdate{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := rosters.Join(context.Background(), rec.ID, member(1), time.Now().UTC()); !errors.Is(err, roster.ErrClosed) {
		t.Fatalf("join closed = %v", err)
	}
	if _, err := rosters.Leave(context.Background(), rec.ID, rec.CreatorID, time.Now().UTC()); !errors.Is(err, roster.ErrClosed) {
		t.Fatalf("leave closed = %v", err)
	}
}
