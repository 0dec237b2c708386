package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"digital_microwave/internal/logger"
	"digital_microwave/internal/repository"
	"digital_microwave/internal/repository/db"
	"digital_microwave/internal/service"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// load config.yml
	cfgErr := loadConfig()

	// init logger
	log := logger.Get(viper.GetString("log.level"))
	if cfgErr != nil {
		log.Fatalw("error reading config", "err", cfgErr)
	}

	// open DB
	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	if conn != nil {
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				log.Errorw("failed to close sqlite", "err", cerr)
			}
		}()
	}

	// wire dependencies
	repos := repository.NewRepository(conn, afero.NewOsFs(), viper.GetString("templates.dir"))
	services := service.NewService(repos, log, service.Config{
		TemplateFile:     viper.GetString("templates.file"),
		TickInterval:     viper.GetDuration("clock.interval"),
		BuiltinTemplates: viper.GetBool("templates.builtin"),
		HistoryBuffer:    viper.GetInt("history.buffer"),
	})

	bootedAt := time.Now().UTC()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorderDone := make(chan struct{})
	if services.Recorder != nil {
		go func() {
			services.Recorder.Run(ctx)
			close(recorderDone)
		}()
	} else {
		close(recorderDone)
	}

	if err := services.Initialize(ctx); err != nil {
		log.Fatalw("failed to initialize device", "err", err)
	}

	startJob(ctx, services, viper.GetString("startup.job"), log)

	// graceful shutdown
	waitForShutdown(cancel, services, recorderDone, log)
	logHistorySummary(services, bootedAt, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetEnvPrefix("microwave")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("db.path", "microwave.db")
	viper.SetDefault("templates.dir", ".")
	viper.SetDefault("templates.file", service.DefaultTemplateFile)
	viper.SetDefault("templates.builtin", true)
	viper.SetDefault("clock.interval", time.Second)
	viper.SetDefault("history.buffer", 64)
	viper.SetDefault("startup.job", "")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// openDB initializes the SQLite history database. An empty db.path
// disables job history.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path is empty; job history disabled")
		return nil, nil
	}
	return db.InitDB(dbPath)
}

// startJob loads the configured job at boot, if any. A failing job is
// logged and the device stays idle.
func startJob(ctx context.Context, dev service.Device, raw string, log *logger.Logger) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	if err := dev.Start(ctx, raw); err != nil {
		log.Warnw("startup job rejected", "err", err)
		return
	}
	snap := dev.Snapshot()
	log.Infow("startup job running",
		"job_id", snap.Job.ID,
		"potency", snap.Job.Template.Potency,
		"time_left", snap.Job.TimeLeft,
	)
}

// waitForShutdown listens for termination signals, stops the clock, saves
// the template library and drains the history recorder.
func waitForShutdown(cancel context.CancelFunc, services *service.Service, recorderDone <-chan struct{}, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down device...")

	if err := services.Close(); err != nil {
		log.Errorw("failed to stop device", "err", err)
	}

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := services.PersistTemplates(ctx); err != nil {
		log.Errorw("failed to save templates", "err", err)
	}

	// stop background goroutines
	cancel()

	select {
	case <-recorderDone:
	case <-ctx.Done():
		log.Warnw("history recorder did not drain in time")
	}
}

// logHistorySummary reports the job events recorded during this run.
func logHistorySummary(services *service.Service, since time.Time, log *logger.Logger) {
	if services.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	counts, err := services.History.Summary(ctx, since)
	if err != nil {
		log.Errorw("failed to read job history", "err", err)
		return
	}
	log.Infow("job history for this run", "events", counts, "dropped", services.Recorder.Dropped())
}
