package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/repository"
)

// MemberCount is one member's join count over the activity window.
type MemberCount struct {
	MemberID string
	Joins    int64
}

// SelectRegulars returns up to topN members with at least one join, ordered
// by join count descending. Equal counts are ordered by member id so the
// cut at topN is stable between runs.
func SelectRegulars(counts []MemberCount, topN int) []string {
	ranked := make([]MemberCount, 0, len(counts))
	for _, c := range counts {
		if c.Joins > 0 {
			ranked = append(ranked, c)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Joins != ranked[j].Joins {
			return ranked[i].Joins > ranked[j].Joins
		}
		return ranked[i].MemberID < ranked[j].MemberID
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	out := make([]string, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, c.MemberID)
	}
	return out
}

// NonParticipationRate is (total - joins) / total. total must be positive.
func NonParticipationRate(joins, total int64) float64 {
	return float64(total-joins) / float64(total)
}

// SelectGhosts returns members whose non-participation rate is strictly
// above threshold. It returns nil when total is zero.
func SelectGhosts(counts []MemberCount, total int64, threshold float64) []string {
	if total <= 0 {
		return nil
	}
	var out []string
	for _, c := range counts {
		if NonParticipationRate(c.Joins, total) > threshold {
			out = append(out, c.MemberID)
		}
	}
	return out
}

// ScoringReport summarizes one activity scoring pass.
type ScoringReport struct {
	GuildID           string    `json:"guild_id"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	MembersScored     int       `json:"members_scored"`
	TotalRecruitments int64     `json:"total_recruitments"`
	Regulars          []string  `json:"regulars"`
	Ghosts            []string  `json:"ghosts"`
	GhostPassSkipped  bool      `json:"ghost_pass_skipped"`
	RolesAdded        int       `json:"roles_added"`
	RolesRemoved      int       `json:"roles_removed"`
	FailedMembers     int       `json:"failed_members"`
}

type ActivityService interface {
	RunScoringPass(ctx context.Context, guildID string, now time.Time) (*ScoringReport, error)
}

type activityService struct {
	logs      repository.ActivityLogRepository
	directory GuildDirectory
	roles     RoleGateway
	cfg       config.ActivityConfig
	logger    *zap.Logger
}

func NewActivityService(
	logs repository.ActivityLogRepository,
	directory GuildDirectory,
	roles RoleGateway,
	cfg config.ActivityConfig,
	logger *zap.Logger,
) ActivityService {
	return &activityService{
		logs:      logs,
		directory: directory,
		roles:     roles,
		cfg:       cfg,
		logger:    logger.Named("activity"),
	}
}

func (s *activityService) RunScoringPass(ctx context.Context, guildID string, now time.Time) (*ScoringReport, error) {
	start := now.Add(-s.cfg.Window)
	report := &ScoringReport{GuildID: guildID, WindowStart: start, WindowEnd: now}
	log := s.logger.With(zap.String("guild_id", guildID))

	all, err := s.directory.ListMembers(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list guild members: %w", err)
	}
	members := make([]GuildMember, 0, len(all))
	for _, m := range all {
		if !m.Bot {
			members = append(members, m)
		}
	}
	report.MembersScored = len(members)

	counts := make([]MemberCount, 0, len(members))
	for _, m := range members {
		n, err := s.logs.CountJoinsInPeriod(ctx, m.ID, start, now)
		if err != nil {
			return nil, persistenceErr("count joins", err)
		}
		counts = append(counts, MemberCount{MemberID: m.ID, Joins: n})
	}
	total, err := s.logs.CountGuildRecruitmentsInPeriod(ctx, guildID, start, now)
	if err != nil {
		return nil, persistenceErr("count recruitments", err)
	}
	report.TotalRecruitments = total

	resolver := newRoleResolver(s.roles)
	diffs := make(map[string]RoleDiff, len(members))

	report.Regulars = SelectRegulars(counts, s.cfg.TopN)
	regularRole, err := resolver.Resolve(ctx, guildID, s.cfg.RegularRoleName, s.cfg.RegularRoleColor, false)
	if err != nil {
		log.Warn("regular role unavailable, skipping regular pass", zap.Error(err))
	} else {
		wanted := toSet(report.Regulars)
		for _, m := range members {
			var target *RoleRef
			if _, ok := wanted[m.ID]; ok {
				target = &regularRole
			}
			diffs[m.ID] = diffs[m.ID].Merge(DiffRoles(m.Roles, RoleIs(regularRole), target))
		}
	}

	if total == 0 {
		report.GhostPassSkipped = true
		log.Info("no recruitments in window, skipping ghost pass")
	} else {
		report.Ghosts = SelectGhosts(counts, total, s.cfg.GhostThreshold)
		ghostRole, err := resolver.Resolve(ctx, guildID, s.cfg.GhostRoleName, s.cfg.GhostRoleColor, false)
		if err != nil {
			log.Warn("ghost role unavailable, skipping ghost pass", zap.Error(err))
		} else {
			wanted := toSet(report.Ghosts)
			for _, m := range members {
				var target *RoleRef
				if _, ok := wanted[m.ID]; ok {
					target = &ghostRole
				}
				diffs[m.ID] = diffs[m.ID].Merge(DiffRoles(m.Roles, RoleIs(ghostRole), target))
			}
		}
	}

	pending := make([]string, 0, len(diffs))
	for _, m := range members {
		if d, ok := diffs[m.ID]; ok && !d.Empty() {
			pending = append(pending, m.ID)
		}
	}

	var mu sync.Mutex
	err = fanOut(s.cfg.Workers, pending, func(memberID string) {
		res := applyDiff(ctx, s.roles, guildID, memberID, diffs[memberID], "Activity roles update")
		if res.Err != nil {
			log.Warn("role update failed", zap.String("member_id", memberID), zap.Error(res.Err))
		}
		mu.Lock()
		report.RolesAdded += res.Added
		report.RolesRemoved += res.Removed
		if res.Err != nil {
			report.FailedMembers++
		}
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	log.Info("activity scoring pass finished",
		zap.Int("members", report.MembersScored),
		zap.Int64("recruitments", report.TotalRecruitments),
		zap.Strings("regulars", report.Regulars),
		zap.Int("ghosts", len(report.Ghosts)),
		zap.Int("roles_added", report.RolesAdded),
		zap.Int("roles_removed", report.RolesRemoved),
		zap.Int("failed_members", report.FailedMembers),
	)
	return report, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
