package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/deadline"
	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/repository"
	"joinus/partyboard/internal/roster"
)

// Clock returns the current time. Production wiring passes time.Now.
type Clock func() time.Time

// PlaceholderPrefix marks a message ref that has not been replaced by the
// adapter's real board message yet.
const PlaceholderPrefix = "pending:"

type CreateInput struct {
	GuildID         string
	CreatorID       string
	PartyType       string
	AdditionalSlots int
	DeadlineText    string
	CoMembers       []string
	VoiceMembers    []string
}

// EditInput carries the fields to change; nil fields are kept.
type EditInput struct {
	PartyType       *string
	MaxParticipants *int
	DeadlineText    *string
}

type CancelResult struct {
	Recruitment *model.Recruitment
	// ParticipantIDs is the full roster read before the status flip. The
	// canceller is not filtered out.
	ParticipantIDs []string
}

// RecruitmentService owns the recruitment lifecycle. Every mutating call
// returns a display message alongside its result, on success and on failure.
type RecruitmentService interface {
	Create(ctx context.Context, in CreateInput) (*model.Recruitment, string, error)
	Join(ctx context.Context, recruitmentID uuid.UUID, memberID string) (string, error)
	// Leave reports whether the member was removed. Leaving a recruitment the
	// member is not on succeeds without removing anything.
	Leave(ctx context.Context, recruitmentID uuid.UUID, memberID string) (bool, string, error)
	Cancel(ctx context.Context, guildID, creatorID string) (*CancelResult, string, error)
	Edit(ctx context.Context, recruitmentID uuid.UUID, in EditInput) (*model.Recruitment, string, error)
	AttachMessage(ctx context.Context, recruitmentID uuid.UUID, actorID, ref string) (*model.Recruitment, string, error)

	GetByID(ctx context.Context, id uuid.UUID) (*model.Recruitment, error)
	GetByMessageRef(ctx context.Context, ref string) (*model.Recruitment, error)
	GetOpenByCreator(ctx context.Context, guildID, creatorID string) (*model.Recruitment, error)
	Roster(ctx context.Context, recruitmentID uuid.UUID) ([]model.Participant, error)
}

type recruitmentService struct {
	recruitments repository.RecruitmentRepository
	participants repository.ParticipantRepository
	rosters      repository.RosterRepository
	cfg          config.RecruitmentConfig
	loc          *time.Location
	clock        Clock
	locks        *keyLock
	logger       *zap.Logger
}

func NewRecruitmentService(
	recruitments repository.RecruitmentRepository,
	participants repository.ParticipantRepository,
	rosters repository.RosterRepository,
	cfg config.RecruitmentConfig,
	clock Clock,
	logger *zap.Logger,
) (RecruitmentService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("recruitment timezone: %w", err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &recruitmentService{
		recruitments: recruitments,
		participants: participants,
		rosters:      rosters,
		cfg:          cfg,
		loc:          loc,
		clock:        clock,
		locks:        newKeyLock(),
		logger:       logger.Named("recruitment"),
	}, nil
}

func (s *recruitmentService) now() time.Time {
	return s.clock().In(s.loc)
}

// parseFutureDeadline parses text against now and requires the result to be
// strictly after now.
func parseFutureDeadline(text string, now time.Time) (time.Time, error) {
	d, err := deadline.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidDeadline, err)
	}
	if !d.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s is not after %s", ErrInvalidDeadline, d, now)
	}
	return d, nil
}

func (s *recruitmentService) Create(ctx context.Context, in CreateInput) (*model.Recruitment, string, error) {
	now := s.now()

	if err := validateCreate(in); err != nil {
		return nil, MessageFor(err), err
	}
	d, err := parseFutureDeadline(in.DeadlineText, now)
	if err != nil {
		s.logger.Debug("create rejected", zap.String("creator_id", in.CreatorID), zap.Error(err))
		return nil, MessageFor(err), err
	}

	switch _, err := s.recruitments.GetOpenByCreator(ctx, in.GuildID, in.CreatorID); {
	case err == nil:
		return nil, MessageFor(ErrAlreadyOpen), ErrAlreadyOpen
	case !errors.Is(err, gorm.ErrRecordNotFound):
		perr := persistenceErr("find open recruitment", err)
		s.logger.Error("create failed", zap.String("creator_id", in.CreatorID), zap.Error(perr))
		return nil, MessageFor(perr), perr
	}

	ref, err := placeholderRef()
	if err != nil {
		return nil, MessageFor(err), err
	}

	members := roster.InitialMembers(in.CreatorID, in.CoMembers, in.VoiceMembers)
	rec := &model.Recruitment{
		ID:              uuid.New(),
		MessageRef:      ref,
		GuildID:         in.GuildID,
		CreatorID:       in.CreatorID,
		PartyType:       strings.TrimSpace(in.PartyType),
		MaxParticipants: roster.Capacity(members, in.AdditionalSlots),
		Status:          model.RecruitmentStatusOpen,
		Deadline:        d,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.rosters.Seed(ctx, rec, members, now); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent create by the same creator.
			return nil, MessageFor(ErrAlreadyOpen), ErrAlreadyOpen
		}
		perr := persistenceErr("create recruitment", err)
		s.logger.Error("create failed", zap.String("creator_id", in.CreatorID), zap.Error(perr))
		return nil, MessageFor(perr), perr
	}

	s.logger.Info("recruitment created",
		zap.String("recruitment_id", rec.ID.String()),
		zap.String("guild_id", rec.GuildID),
		zap.String("creator_id", rec.CreatorID),
		zap.Int("initial_members", len(members)),
		zap.Int("max_participants", rec.MaxParticipants),
		zap.Time("deadline", rec.Deadline),
	)
	return rec, msgCreated, nil
}

func validateCreate(in CreateInput) error {
	if !model.ValidSnowflake(in.GuildID) || !model.ValidSnowflake(in.CreatorID) {
		return fmt.Errorf("%w: guild and creator must be snowflake ids", ErrInvalidInput)
	}
	for _, id := range append(append([]string(nil), in.CoMembers...), in.VoiceMembers...) {
		if !model.ValidSnowflake(id) {
			return fmt.Errorf("%w: member id %q", ErrInvalidInput, id)
		}
	}
	if strings.TrimSpace(in.PartyType) == "" {
		return fmt.Errorf("%w: party type is empty", ErrInvalidInput)
	}
	if in.AdditionalSlots < 0 {
		return fmt.Errorf("%w: additional slots %d", ErrInvalidCapacity, in.AdditionalSlots)
	}
	return nil
}

func placeholderRef() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate placeholder ref: %w", err)
	}
	return PlaceholderPrefix + id, nil
}

func (s *recruitmentService) Join(ctx context.Context, recruitmentID uuid.UUID, memberID string) (string, error) {
	if !model.ValidSnowflake(memberID) {
		err := fmt.Errorf("%w: member id %q", ErrInvalidInput, memberID)
		return MessageFor(err), err
	}

	unlock := s.locks.Lock(recruitmentID.String())
	defer unlock()

	now := s.now()
	if s.cfg.RejectAfterDeadline {
		rec, err := s.load(ctx, recruitmentID, "load recruitment")
		if err != nil {
			return MessageFor(err), err
		}
		if !now.Before(rec.Deadline) {
			return MessageFor(ErrDeadlinePassed), ErrDeadlinePassed
		}
	}

	err := s.rosters.Join(ctx, recruitmentID, memberID, now)
	switch {
	case err == nil:
		s.logger.Info("member joined",
			zap.String("recruitment_id", recruitmentID.String()), zap.String("member_id", memberID))
		return msgJoined, nil
	case errors.Is(err, roster.ErrAlreadyJoined), errors.Is(err, roster.ErrFull), errors.Is(err, roster.ErrClosed):
		s.logger.Debug("join rejected",
			zap.String("recruitment_id", recruitmentID.String()), zap.String("member_id", memberID), zap.Error(err))
		return MessageFor(err), err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// A concurrent join by the same member committed first.
		return MessageFor(ErrAlreadyJoined), ErrAlreadyJoined
	case errors.Is(err, gorm.ErrRecordNotFound):
		return MessageFor(ErrRecruitmentNotFound), ErrRecruitmentNotFound
	default:
		perr := persistenceErr("join", err)
		s.logger.Error("join failed",
			zap.String("recruitment_id", recruitmentID.String()), zap.String("member_id", memberID), zap.Error(perr))
		return MessageFor(perr), perr
	}
}

func (s *recruitmentService) Leave(ctx context.Context, recruitmentID uuid.UUID, memberID string) (bool, string, error) {
	unlock := s.locks.Lock(recruitmentID.String())
	defer unlock()

	removed, err := s.rosters.Leave(ctx, recruitmentID, memberID, s.now())
	switch {
	case err == nil:
		if !removed {
			return false, msgNotJoined, nil
		}
		s.logger.Info("member left",
			zap.String("recruitment_id", recruitmentID.String()), zap.String("member_id", memberID))
		return true, msgLeft, nil
	case errors.Is(err, roster.ErrClosed):
		return false, MessageFor(err), err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, MessageFor(ErrRecruitmentNotFound), ErrRecruitmentNotFound
	default:
		perr := persistenceErr("leave", err)
		s.logger.Error("leave failed",
			zap.String("recruitment_id", recruitmentID.String()), zap.String("member_id", memberID), zap.Error(perr))
		return false, MessageFor(perr), perr
	}
}

// Cancel reads the roster first and flips the status last, so a failed
// cancel leaves the recruitment open with its roster intact.
func (s *recruitmentService) Cancel(ctx context.Context, guildID, creatorID string) (*CancelResult, string, error) {
	rec, err := s.recruitments.GetOpenByCreator(ctx, guildID, creatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, MessageFor(ErrNotFound), ErrNotFound
		}
		perr := persistenceErr("find open recruitment", err)
		s.logger.Error("cancel failed", zap.String("creator_id", creatorID), zap.Error(perr))
		return nil, MessageFor(perr), perr
	}

	unlock := s.locks.Lock(rec.ID.String())
	defer unlock()

	// A concurrent cancel may have closed it while we waited on the lock.
	rec, err = s.load(ctx, rec.ID, "load recruitment")
	if err != nil {
		if errors.Is(err, ErrRecruitmentNotFound) {
			return nil, MessageFor(ErrNotFound), ErrNotFound
		}
		return nil, MessageFor(err), err
	}
	if !rec.IsOpen() {
		return nil, MessageFor(ErrNotFound), ErrNotFound
	}

	participants, err := s.participants.ListByRecruitment(ctx, rec.ID)
	if err != nil {
		perr := persistenceErr("list participants", err)
		s.logger.Error("cancel failed", zap.String("recruitment_id", rec.ID.String()), zap.Error(perr))
		return nil, MessageFor(perr), perr
	}

	cancelled := model.RecruitmentStatusCancelled
	updated, err := s.recruitments.Update(ctx, rec.ID, model.RecruitmentUpdate{Status: &cancelled})
	if err != nil {
		perr := persistenceErr("cancel recruitment", err)
		s.logger.Error("cancel failed", zap.String("recruitment_id", rec.ID.String()), zap.Error(perr))
		return nil, MessageFor(perr), perr
	}

	s.logger.Info("recruitment cancelled",
		zap.String("recruitment_id", rec.ID.String()), zap.Int("participants", len(participants)))
	return &CancelResult{Recruitment: updated, ParticipantIDs: model.MemberIDs(participants)}, msgCancelled, nil
}

func (s *recruitmentService) Edit(
	ctx context.Context, recruitmentID uuid.UUID, in EditInput,
) (*model.Recruitment, string, error) {
	now := s.now()
	var upd model.RecruitmentUpdate

	if in.PartyType != nil {
		party := strings.TrimSpace(*in.PartyType)
		if party == "" {
			err := fmt.Errorf("%w: party type is empty", ErrInvalidInput)
			return nil, MessageFor(err), err
		}
		upd.PartyType = &party
	}
	if in.MaxParticipants != nil {
		if *in.MaxParticipants < 1 {
			err := fmt.Errorf("%w: max participants %d", ErrInvalidCapacity, *in.MaxParticipants)
			return nil, MessageFor(err), err
		}
		upd.MaxParticipants = in.MaxParticipants
	}
	if in.DeadlineText != nil {
		d, err := parseFutureDeadline(*in.DeadlineText, now)
		if err != nil {
			return nil, MessageFor(err), err
		}
		upd.Deadline = &d
	}

	unlock := s.locks.Lock(recruitmentID.String())
	defer unlock()

	rec, err := s.load(ctx, recruitmentID, "load recruitment")
	if err != nil {
		return nil, MessageFor(err), err
	}
	if !rec.IsOpen() {
		return nil, MessageFor(ErrRecruitmentClosed), ErrRecruitmentClosed
	}

	if upd.MaxParticipants != nil {
		participants, err := s.participants.ListByRecruitment(ctx, recruitmentID)
		if err != nil {
			perr := persistenceErr("list participants", err)
			s.logger.Error("edit failed", zap.String("recruitment_id", recruitmentID.String()), zap.Error(perr))
			return nil, MessageFor(perr), perr
		}
		if len(participants) > *upd.MaxParticipants {
			s.logger.Warn("capacity reduced below roster size",
				zap.String("recruitment_id", recruitmentID.String()),
				zap.Int("max_participants", *upd.MaxParticipants),
				zap.Int("participants", len(participants)))
		}
	}

	updated, err := s.recruitments.Update(ctx, recruitmentID, upd)
	if err != nil {
		perr := persistenceErr("edit recruitment", err)
		s.logger.Error("edit failed", zap.String("recruitment_id", recruitmentID.String()), zap.Error(perr))
		return nil, MessageFor(perr), perr
	}
	return updated, msgEdited, nil
}

// AttachMessage replaces the placeholder message ref once the board message
// exists. Only the creator may attach.
func (s *recruitmentService) AttachMessage(
	ctx context.Context, recruitmentID uuid.UUID, actorID, ref string,
) (*model.Recruitment, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, PlaceholderPrefix) {
		err := fmt.Errorf("%w: message ref %q", ErrInvalidInput, ref)
		return nil, MessageFor(err), err
	}

	rec, err := s.load(ctx, recruitmentID, "load recruitment")
	if err != nil {
		return nil, MessageFor(err), err
	}
	if rec.CreatorID != actorID {
		return nil, MessageFor(ErrNotCreator), ErrNotCreator
	}

	updated, err := s.recruitments.Update(ctx, recruitmentID, model.RecruitmentUpdate{MessageRef: &ref})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			derr := fmt.Errorf("%w: message ref %q already attached", ErrInvalidInput, ref)
			return nil, MessageFor(derr), derr
		}
		perr := persistenceErr("attach message", err)
		s.logger.Error("attach failed", zap.String("recruitment_id", recruitmentID.String()), zap.Error(perr))
		return nil, MessageFor(perr), perr
	}
	return updated, msgAttached, nil
}

func (s *recruitmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Recruitment, error) {
	return s.load(ctx, id, "get recruitment")
}

func (s *recruitmentService) GetByMessageRef(ctx context.Context, ref string) (*model.Recruitment, error) {
	rec, err := s.recruitments.GetByMessageRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecruitmentNotFound
		}
		return nil, persistenceErr("get recruitment by message", err)
	}
	return rec, nil
}

func (s *recruitmentService) GetOpenByCreator(ctx context.Context, guildID, creatorID string) (*model.Recruitment, error) {
	rec, err := s.recruitments.GetOpenByCreator(ctx, guildID, creatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceErr("find open recruitment", err)
	}
	return rec, nil
}

func (s *recruitmentService) Roster(ctx context.Context, recruitmentID uuid.UUID) ([]model.Participant, error) {
	participants, err := s.participants.ListByRecruitment(ctx, recruitmentID)
	if err != nil {
		return nil, persistenceErr("list participants", err)
	}
	return participants, nil
}

func (s *recruitmentService) load(ctx context.Context, id uuid.UUID, op string) (*model.Recruitment, error) {
	rec, err := s.recruitments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecruitmentNotFound
		}
		return nil, persistenceErr(op, err)
	}
	return rec, nil
}
