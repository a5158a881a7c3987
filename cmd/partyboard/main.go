package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/discord"
	"joinus/partyboard/internal/handler"
	"joinus/partyboard/internal/logger"
	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/notify"
	"joinus/partyboard/internal/repository"
	"joinus/partyboard/internal/riot"
	"joinus/partyboard/internal/scheduler"
	"joinus/partyboard/internal/service"
	"joinus/partyboard/pkg/crypto"
	jwtpkg "joinus/partyboard/pkg/jwt"
)

// stores groups the repositories one backend provides.
type stores struct {
	recruitments repository.RecruitmentRepository
	participants repository.ParticipantRepository
	activityLogs repository.ActivityLogRepository
	rosters      repository.RosterRepository
	accounts     repository.LinkedAccountRepository
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer lg.Sync()

	// 3. Storage backend
	var st stores
	switch cfg.Database.Backend {
	case "postgres":
		db, err := config.NewPostgresDB(cfg.Database.Postgres)
		if err != nil {
			lg.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer config.CloseDB(db)
		if cfg.Database.Postgres.AutoMigrate {
			if err := model.AutoMigrate(db); err != nil {
				lg.Fatal("failed to auto-migrate", zap.Error(err))
			}
			lg.Info("database migration completed")
		}
		st = stores{
			recruitments: repository.NewPGRecruitmentRepository(db),
			participants: repository.NewPGParticipantRepository(db),
			activityLogs: repository.NewPGActivityLogRepository(db),
			rosters:      repository.NewPGRosterRepository(db),
			accounts:     repository.NewPGLinkedAccountRepository(db),
		}
	case "memory":
		mem := repository.NewMemoryStore()
		st = stores{recruitments: mem, participants: mem, activityLogs: mem, rosters: mem, accounts: mem}
		lg.Warn("using in-memory storage, data is lost on restart")
	}

	// 4. State store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			lg.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		stateStore = repository.NewRedisStateStore(redisClient)
		lg.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		lg.Info("using in-memory state store")
	}

	// 5. Platform gateways
	session, err := discord.NewSession(cfg.Discord.BotToken)
	if err != nil {
		lg.Fatal("failed to create discord session", zap.Error(err))
	}
	gateway := discord.NewGateway(session)
	lg.Info("discord gateway ready", zap.String("token", discord.MaskToken(cfg.Discord.BotToken)))

	var notifier service.Notifier = gateway
	var worker *notify.Worker
	if cfg.Notify.Backend == "queue" {
		redisOpt := notify.RedisOpt(cfg.Database.Redis)
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		notifier = notify.NewQueueNotifier(client)
		worker = notify.NewWorker(redisOpt, cfg.Notify, gateway, lg)
		if err := worker.Start(); err != nil {
			lg.Fatal("failed to start notify worker", zap.Error(err))
		}
		lg.Info("using queued notifications")
	}

	sealer, err := crypto.NewSealer(cfg.Crypto.TokenKey)
	if err != nil {
		lg.Fatal("failed to init token sealer", zap.Error(err))
	}

	// 6. Services
	recruitmentService, err := service.NewRecruitmentService(
		st.recruitments, st.participants, st.rosters, cfg.Recruitment, time.Now, lg,
	)
	if err != nil {
		lg.Fatal("failed to init recruitment service", zap.Error(err))
	}
	notificationService := service.NewNotificationService(notifier, lg)
	activityService := service.NewActivityService(st.activityLogs, gateway, gateway, cfg.Activity, lg)
	rankService := service.NewRankService(st.accounts, gateway, gateway, riot.NewRankClient(cfg.Riot, nil), cfg.Rank, lg)

	// A typed nil *riot.AuthClient must not reach the interface.
	var riotAuth service.RiotAuthClient
	if c := riot.NewAuthClient(cfg.Riot, nil); c != nil {
		riotAuth = c
	} else {
		lg.Warn("riot client credentials not set, account linking disabled")
	}
	linkService := service.NewLinkService(riotAuth, st.accounts, stateStore, sealer, cfg.State.LinkTTL, lg)

	// 7. Scheduler
	var sched *scheduler.Manager
	if cfg.Scheduler.Enabled {
		loc, _ := cfg.Recruitment.Location()
		sched, err = scheduler.NewManager(loc, lg)
		if err != nil {
			lg.Fatal("failed to create scheduler", zap.Error(err))
		}
		if err := sched.Register(scheduler.NewDailyJob(rankService, activityService, cfg.Scheduler, lg)); err != nil {
			lg.Fatal("failed to register daily job", zap.Error(err))
		}
		sched.Start()
	}

	// 8. HTTP
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	router := handler.SetupRouter(cfg, lg, jwtManager,
		handler.NewRecruitmentHandler(recruitmentService, notificationService, lg),
		handler.NewLinkHandler(linkService),
		handler.NewAdminHandler(activityService, rankService),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		lg.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	// 9. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}
	if worker != nil {
		worker.Shutdown()
	}
	lg.Info("server exited gracefully")
}
