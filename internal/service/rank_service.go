package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/rank"
	"joinus/partyboard/internal/repository"
)

// RankReport summarizes one rank refresh batch.
type RankReport struct {
	GuildID      string         `json:"guild_id"`
	Linked       int            `json:"linked"`
	Updated      int            `json:"updated"`
	NotInGuild   int            `json:"not_in_guild"`
	LookupFailed int            `json:"lookup_failed"`
	RoleFailed   int            `json:"role_failed"`
	Tiers        map[string]int `json:"tiers"`
}

type RankService interface {
	// RefreshMemberRanks re-reads every linked account's rank and reconciles
	// the member's rank role. One member's failure never stops the batch.
	RefreshMemberRanks(ctx context.Context, guildID string, now time.Time) (*RankReport, error)
}

type rankService struct {
	accounts  repository.LinkedAccountRepository
	directory GuildDirectory
	roles     RoleGateway
	client    RankClient
	cfg       config.RankConfig
	logger    *zap.Logger
}

func NewRankService(
	accounts repository.LinkedAccountRepository,
	directory GuildDirectory,
	roles RoleGateway,
	client RankClient,
	cfg config.RankConfig,
	logger *zap.Logger,
) RankService {
	return &rankService{
		accounts:  accounts,
		directory: directory,
		roles:     roles,
		client:    client,
		cfg:       cfg,
		logger:    logger.Named("rank"),
	}
}

type rankOutcome int

const (
	rankUpdated rankOutcome = iota
	rankNotInGuild
	rankLookupFailed
	rankRoleFailed
)

func (s *rankService) RefreshMemberRanks(ctx context.Context, guildID string, now time.Time) (*RankReport, error) {
	accounts, err := s.accounts.ListLinked(ctx)
	if err != nil {
		return nil, persistenceErr("list linked accounts", err)
	}

	report := &RankReport{GuildID: guildID, Linked: len(accounts), Tiers: make(map[string]int)}
	log := s.logger.With(zap.String("guild_id", guildID))
	resolver := newRoleResolver(s.roles)

	var mu sync.Mutex
	err = fanOut(s.cfg.Workers, accounts, func(acct model.LinkedAccount) {
		outcome, tier := s.refreshOne(ctx, resolver, guildID, acct, now, log)
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case rankUpdated:
			report.Updated++
			report.Tiers[tier]++
		case rankNotInGuild:
			report.NotInGuild++
		case rankLookupFailed:
			report.LookupFailed++
		case rankRoleFailed:
			report.RoleFailed++
		}
	})
	if err != nil {
		return nil, err
	}

	log.Info("rank refresh finished",
		zap.Int("linked", report.Linked),
		zap.Int("updated", report.Updated),
		zap.Int("not_in_guild", report.NotInGuild),
		zap.Int("lookup_failed", report.LookupFailed),
		zap.Int("role_failed", report.RoleFailed),
	)
	return report, nil
}

func (s *rankService) refreshOne(
	ctx context.Context, resolver *roleResolver, guildID string, acct model.LinkedAccount, now time.Time, log *zap.Logger,
) (rankOutcome, string) {
	log = log.With(zap.String("member_id", acct.MemberID))

	member, err := s.directory.GetMember(ctx, guildID, acct.MemberID)
	if err != nil {
		if errors.Is(err, ErrGuildMemberNotFound) {
			log.Debug("linked member not in guild, skipping")
			return rankNotInGuild, ""
		}
		log.Warn("member lookup failed, skipping", zap.Error(err))
		return rankLookupFailed, ""
	}

	payload, err := s.fetchRank(ctx, acct.RiotPUUID)
	if err != nil {
		if errors.Is(err, ErrNoRankData) {
			log.Info("no rank data, skipping")
		} else {
			log.Warn("rank lookup failed, skipping", zap.Error(err))
		}
		return rankLookupFailed, ""
	}
	tier := rank.ExtractTier(payload)

	if err := s.applyRankRole(ctx, resolver, guildID, member, tier); err != nil {
		log.Warn("rank role update failed", zap.String("tier", tier), zap.Error(err))
		return rankRoleFailed, tier
	}

	if err := s.accounts.UpdateRank(ctx, acct.MemberID, tier, now); err != nil {
		log.Error("store rank failed", zap.Error(persistenceErr("update rank", err)))
	}
	return rankUpdated, tier
}

func (s *rankService) fetchRank(ctx context.Context, puuid string) ([]byte, error) {
	if s.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()
	}
	return s.client.FetchRank(ctx, puuid)
}

// applyRankRole moves member to the role for tier: every other role under the
// rank prefix is removed and the target role is created on demand and added.
func (s *rankService) applyRankRole(
	ctx context.Context, resolver *roleResolver, guildID string, member GuildMember, tier string,
) error {
	target, err := resolver.Resolve(ctx, guildID, rank.RoleName(s.cfg.RolePrefix, tier), 0, true)
	if err != nil {
		return err
	}
	inFamily := func(r RoleRef) bool { return strings.HasPrefix(r.Name, s.cfg.RolePrefix) }
	diff := DiffRoles(member.Roles, inFamily, &target)
	if diff.Empty() {
		return nil
	}
	return applyDiff(ctx, s.roles, guildID, member.ID, diff, "Rank update").Err
}
