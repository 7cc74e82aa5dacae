package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/vakspot/vakspot/internal/config"
	"github.com/vakspot/vakspot/internal/database"
	"github.com/vakspot/vakspot/internal/jobs"
	"github.com/vakspot/vakspot/internal/logger"
	"github.com/vakspot/vakspot/internal/mail"
	"github.com/vakspot/vakspot/internal/tasks"
	"github.com/vakspot/vakspot/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("REDIS_ADDRESS is required to run the worker")
	}

	log.Info().Str("version", version).Msg("Starting VakSpot Asynq worker")

	db, err := database.Open(cfg.Database.URL, log, database.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close(db)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	// Used by the scheduler to enqueue periodic sweeps
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	asynqServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			tasks.QueueCritical: 6,
			tasks.QueueDefault:  3,
			tasks.QueueLow:      1,
		},
		Logger: &asynqLogger{log: log},
	})

	sender := mail.NewSender(cfg.Mail, log)
	jobsService := jobs.NewService(db, log)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendEmail, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleSendEmail(ctx, t, sender, log)
	})
	mux.HandleFunc(tasks.TypeExpireJobs, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleExpireJobs(ctx, t, jobsService, cfg.Jobs.MaxAge, log)
	})

	scheduler, err := workers.NewScheduler(cfg.Jobs.ExpirySchedule, workers.EnqueueExpireJobs(asynqClient, log), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create expiry scheduler")
	}
	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	<-scheduler.Stop().Done()

	log.Info().Msg("Stopping Asynq worker - waiting for tasks to finish...")
	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger adapts zerolog to asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
