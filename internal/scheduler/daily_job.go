package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/service"
)

// DailyJob refreshes linked ranks and then runs the activity scoring pass
// for every configured guild.
type DailyJob struct {
	ranks    service.RankService
	activity service.ActivityService
	cfg      config.SchedulerConfig
	now      func() time.Time
	logger   *zap.Logger
}

func NewDailyJob(ranks service.RankService, activity service.ActivityService, cfg config.SchedulerConfig, logger *zap.Logger) *DailyJob {
	return &DailyJob{ranks: ranks, activity: activity, cfg: cfg, now: time.Now, logger: logger.Named("daily_job")}
}

func (j *DailyJob) GetName() string {
	return "daily_roles"
}

func (j *DailyJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cfg.Cron, false)
}

func (j *DailyJob) Execute(ctx context.Context) {
	j.logger.Info("daily job started", zap.Int("guilds", len(j.cfg.GuildIDs)))
	for _, guildID := range j.cfg.GuildIDs {
		if ctx.Err() != nil {
			j.logger.Warn("daily job interrupted", zap.Error(ctx.Err()))
			return
		}
		j.runGuild(ctx, guildID)
	}
	j.logger.Info("daily job finished")
}

// runGuild bounds one guild's work by the job timeout. A failed step is
// logged and the next one still runs.
func (j *DailyJob) runGuild(ctx context.Context, guildID string) {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.JobTimeout)
	defer cancel()
	log := j.logger.With(zap.String("guild_id", guildID))

	if rr, err := j.ranks.RefreshMemberRanks(ctx, guildID, j.now()); err != nil {
		log.Error("rank refresh failed", zap.Error(err))
	} else {
		log.Info("rank refresh done", zap.Int("updated", rr.Updated), zap.Int("lookup_failed", rr.LookupFailed))
	}

	if sr, err := j.activity.RunScoringPass(ctx, guildID, j.now()); err != nil {
		log.Error("activity scoring failed", zap.Error(err))
	} else {
		log.Info("activity scoring done", zap.Int("regulars", len(sr.Regulars)), zap.Int("ghosts", len(sr.Ghosts)))
	}
}
