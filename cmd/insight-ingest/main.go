package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yang-kun-long/insight-ingest/internal/api"
	"github.com/yang-kun-long/insight-ingest/internal/config"
	"github.com/yang-kun-long/insight-ingest/internal/ingest"
	"github.com/yang-kun-long/insight-ingest/internal/model"
	"github.com/yang-kun-long/insight-ingest/internal/stage"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	var (
		file      = flag.String("file", "", "path to the payload to ingest")
		courseID  = flag.String("course", "", "course id")
		courseNm  = flag.String("course-name", "", "course name")
		title     = flag.String("title", "", "course title")
		videoID   = flag.Int64("video", 0, "video id")
		sessionID = flag.Int64("session", 0, "session id")
		videoType = flag.String("video-type", "vga", "video type")
		startedAt = flag.String("started-at", "", "recording start timestamp")
		deep      = flag.Bool("deep", false, "start deep processing after ingestion")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if *file == "" || *courseID == "" {
		fmt.Fprintln(os.Stderr, "usage: insight-ingest -file <path> -course <id> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Load()
	logger.Info("insight-ingest starting",
		zap.String("version", version),
		zap.String("backend", cfg.BaseURL),
		zap.Int64("partSize", cfg.PartSize),
		zap.Int("concurrency", cfg.Concurrency),
	)

	payload, err := os.Open(*file)
	if err != nil {
		logger.Fatal("failed to open payload", zap.Error(err))
	}
	defer payload.Close()

	info, err := payload.Stat()
	if err != nil {
		logger.Fatal("failed to stat payload", zap.Error(err))
	}

	client := api.NewClient(cfg.BaseURL, cfg.RequestTimeout, logger)
	registry := stage.NewRegistry()

	opts := ingest.OptionsFromConfig(cfg)
	opts.AutoProcess = opts.AutoProcess || *deep
	svc := ingest.NewService(client, registry, opts, logger)

	done := make(chan model.State, 1)
	svc.SetUpdateCallback(func(task *model.Task) {
		state := task.State
		switch state.Phase {
		case model.PhaseWaiting:
			logger.Info("waiting", zap.String("on", string(state.Wait)), zap.String("label", state.Label))
		case model.PhaseUploading, model.PhaseDownloading, model.PhaseTranscoding:
			logger.Info(string(state.Phase),
				zap.Int("percent", int(state.Progress*100)),
				zap.String("label", state.Label),
			)
		case model.PhaseFinished:
			logger.Info("finished", zap.String("result", state.ResultRef))
			if !opts.AutoProcess || state.Checkpoint == model.CheckpointDeepDone {
				select {
				case done <- state:
				default:
				}
			}
		case model.PhaseError:
			logger.Warn("task ended", zap.String("kind", string(state.ErrKind)), zap.String("message", state.Message))
			select {
			case done <- state:
			default:
			}
		}
	})

	identity := model.Identity{
		CourseID:    *courseID,
		CourseName:  *courseNm,
		CourseTitle: *title,
		VideoType:   *videoType,
		VideoID:     *videoID,
		SessionID:   *sessionID,
		StartedAt:   *startedAt,
	}
	task, err := svc.Ingest(identity, payload, info.Size())
	if err != nil {
		logger.Fatal("failed to start ingestion", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			logger.Info("cancelling")
			if err := svc.Cancel(task.ID); err != nil {
				logger.Warn("cancel failed", zap.Error(err))
			}
		case state := <-done:
			if state.Phase == model.PhaseError && !state.Cancelled() {
				os.Exit(1)
			}
			return
		}
	}
}
