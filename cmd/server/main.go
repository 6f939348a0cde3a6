package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"fincoach/internal/config"
	"fincoach/internal/database"
	"fincoach/internal/dispatch"
	"fincoach/internal/logger"
	"fincoach/internal/mailer"
	"fincoach/internal/module/advisor"
	allocservice "fincoach/internal/module/allocation/service"
	connectionhandler "fincoach/internal/module/connection/handler"
	connectionrepo "fincoach/internal/module/connection/repository"
	connectionservice "fincoach/internal/module/connection/service"
	goalhandler "fincoach/internal/module/goal/handler"
	goalrepo "fincoach/internal/module/goal/repository"
	goalservice "fincoach/internal/module/goal/service"
	streakhandler "fincoach/internal/module/streak/handler"
	streakrepo "fincoach/internal/module/streak/repository"
	streakservice "fincoach/internal/module/streak/service"
	transactionhandler "fincoach/internal/module/transaction/handler"
	transactionrepo "fincoach/internal/module/transaction/repository"
	transactionservice "fincoach/internal/module/transaction/service"
	userrepo "fincoach/internal/module/user/repository"
	"fincoach/internal/scheduler"
	"fincoach/internal/server"
	"fincoach/internal/shared"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			logger.New,
			shared.SystemClock,
			database.New,

			userrepo.NewUserRepository,
			connectionrepo.NewConnectionRepository,
			goalrepo.NewGoalRepository,
			transactionrepo.NewTransactionRepository,
			streakrepo.NewStreakRepository,

			newSnapshotStore,
			connectionservice.NewConnectionService,
			newCooldown,
			advisor.NewGeminiAdvisor,
			goalservice.NewGoalService,
			streakservice.NewStreakService,
			transactionservice.NewTransactionService,
			mailer.New,
			dispatch.New,
			allocservice.NewEngine,
			allocservice.NewOrchestrator,

			connectionhandler.NewConnectionHandler,
			goalhandler.NewGoalHandler,
			transactionhandler.NewTransactionHandler,
			streakhandler.NewStreakHandler,

			server.NewRouter,
			server.New,
			scheduler.New,
		),
		fx.Invoke(run),
	).Run()
}

func newSnapshotStore(cfg *config.Config, log *zap.Logger) connectionservice.SnapshotStore {
	return connectionservice.NewSnapshotStore(cfg.Sync.MockDataDir, log)
}

// newCooldown shares the advisor cooldown through Redis when configured,
// falling back to process-local state.
func newCooldown(cfg *config.Config, clock shared.Clock, log *zap.Logger) advisor.Cooldown {
	if cfg.Redis.Addr == "" {
		return advisor.NewMemoryCooldown(clock)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return advisor.NewRedisCooldown(client, log)
}

func run(
	lc fx.Lifecycle,
	srv *server.Server,
	sched *scheduler.Scheduler,
	dispatcher *dispatch.Dispatcher,
	_ *gin.Engine,
	log *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			srv.Start()
			if err := sched.Start(); err != nil {
				return err
			}
			log.Info("fincoach up")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sched.Stop()
			dispatcher.Stop()
			return srv.Stop(ctx)
		},
	})
}
