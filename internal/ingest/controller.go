package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/yang-kun-long/insight-ingest/internal/api"
	"github.com/yang-kun-long/insight-ingest/internal/metrics"
	"github.com/yang-kun-long/insight-ingest/internal/model"
	"github.com/yang-kun-long/insight-ingest/internal/poll"
	"github.com/yang-kun-long/insight-ingest/internal/stage"
	"github.com/yang-kun-long/insight-ingest/internal/upload"
)

// run drives one task through the full pipeline: preflight/init →
// (short-circuit if exists) → segment upload → completion → merge/transcode
// polling → optional deep processing.
func (s *Service) run(ctx context.Context, task *model.Task, payload io.ReaderAt, size int64) {
	metrics.ActiveTasks.Inc()
	defer metrics.ActiveTasks.Dec()

	s.mu.RLock()
	cancel := s.cancels[task.ID]
	s.mu.RUnlock()
	defer s.clearCancel(task.ID, cancel)

	key := task.Identity.Key()
	total := upload.SegmentCount(size, task.PartSize)

	// Preflight + session init: one round trip. The backend either reports
	// fully processed equivalent content or opens (or reuses) a session.
	s.setState(task, model.StateWaiting(model.WaitCheck, ""))
	initResp, err := s.backend.InitIngestion(ctx, api.NewInitRequest(task.Identity, total, s.opts.AutoTranscode))
	if err != nil {
		s.fail(task, model.ErrorDownload, err)
		return
	}

	s.mu.Lock()
	task.ContentRef = initResp.Identity
	task.SessionRef = initResp.SessionRef
	s.mu.Unlock()

	if initResp.Exists {
		s.registry.Observe(key, stage.StageExists)
		s.registry.Observe(key, stage.StageDone)
		metrics.PreflightHitsTotal.Inc()
		s.logger.Info("content already processed, skipping upload",
			zap.String("task", task.ID),
			zap.String("identity", initResp.Identity),
		)
		s.finish(task, initResp.DownloadRef, model.CheckpointMerged)
		return
	}
	s.registry.Observe(key, stage.StageNotExists)

	// A reused session may already hold acknowledged segments; skip those.
	skip := s.resumeSet(ctx, task.SessionRef, total)

	s.setState(task, model.StateWaiting(model.WaitUpload, ""))
	uploader := &upload.Uploader{
		PartSize:    task.PartSize,
		Concurrency: s.opts.Concurrency,
		Attempts:    s.opts.RetryAttempts,
		RetryDelay:  s.opts.RetryDelay,
		Logger:      s.logger,
		OnProgress: func(acked, total int) {
			s.setState(task, model.StateUploading(float64(acked)/float64(total)))
		},
	}
	err = uploader.Upload(ctx, payload, size, func(ctx context.Context, index int, data []byte) error {
		return s.backend.UploadSegment(ctx, task.SessionRef, index, data)
	}, skip)
	if err != nil {
		s.fail(task, model.ErrorUpload, err)
		return
	}

	if err := s.backend.CompleteIngestion(ctx, task.SessionRef); err != nil {
		s.fail(task, model.ErrorUpload, err)
		return
	}

	// Merge/transcode pipeline.
	s.setState(task, model.StateWaiting(model.WaitTranscode, ""))
	var resultRef string
	poller := &poll.Poller{Interval: s.opts.PollInterval, Logger: s.logger}
	_, err = poller.Run(ctx,
		func(ctx context.Context) (stage.Observation, error) {
			status, err := s.backend.IngestionStatus(ctx, task.SessionRef)
			if err != nil {
				return stage.Observation{}, err
			}
			if status.DownloadRef != "" {
				resultRef = status.DownloadRef
			}
			return status.Observation(), nil
		},
		func(obs stage.Observation) {
			s.registry.Observe(key, obs.Stage)
			metrics.StageObservationsTotal.WithLabelValues("ingestion").Inc()
			s.observeIngestion(task, obs)
		},
	)
	if err != nil {
		s.fail(task, model.ErrorTranscode, err)
		return
	}

	s.finish(task, resultRef, model.CheckpointMerged)

	if task.AutoProcess {
		s.runDeepProcess(ctx, task)
	}
}

// runDeepProcess drives the second, opaque AI pipeline. Entered either
// automatically after the first pipeline or by explicit user action from the
// Finished checkpoint.
func (s *Service) runDeepProcess(ctx context.Context, task *model.Task) {
	key := task.Identity.Key()

	waiting := model.StateWaiting(model.WaitServer, "")
	waiting.Checkpoint = model.CheckpointDeepRunning
	s.setState(task, waiting)

	if err := s.backend.StartDeepProcess(ctx, task.ContentRef); err != nil {
		s.fail(task, model.ErrorTranscode, err)
		return
	}

	poller := &poll.Poller{Interval: s.opts.PollInterval, Logger: s.logger}
	_, err := poller.Run(ctx,
		func(ctx context.Context) (stage.Observation, error) {
			status, err := s.backend.DeepProcessStatus(ctx, task.ContentRef)
			if err != nil {
				return stage.Observation{}, err
			}
			return status.Observation(), nil
		},
		func(obs stage.Observation) {
			s.registry.Observe(key, obs.Stage)
			metrics.StageObservationsTotal.WithLabelValues("deep_process").Inc()
			s.observeDeepProcess(task, obs)
		},
	)
	if err != nil {
		s.fail(task, model.ErrorTranscode, err)
		return
	}

	s.mu.RLock()
	resultRef := task.DownloadRef
	s.mu.RUnlock()
	s.finish(task, resultRef, model.CheckpointDeepDone)
}

// observeIngestion maps a merge/transcode observation onto the task state.
// Terminal stages are handled by the poller's return value, not here.
func (s *Service) observeIngestion(task *model.Task, obs stage.Observation) {
	if obs.Stage.Terminal() {
		return
	}
	switch obs.Stage {
	case stage.StageQueued, stage.StageMerging, stage.StageMerged:
		s.setState(task, model.StateWaiting(model.WaitTranscode, obs.Stage.String()))
	default:
		// TRANSCODING and any stage this client predates: processing.
		s.setState(task, model.StateTranscoding(obs.Progress, obs.Stage.String()))
	}
}

// observeDeepProcess maps a deep pipeline observation onto the task state.
func (s *Service) observeDeepProcess(task *model.Task, obs stage.Observation) {
	if obs.Stage.Terminal() {
		return
	}
	label := obs.Stage.String()
	if obs.Message != "" {
		label = obs.Message
	}
	state := model.StateTranscoding(obs.Progress, label)
	state.Checkpoint = model.CheckpointDeepRunning
	s.setState(task, state)
}

// resumeSet asks the backend which segments a session still misses and
// returns the complement as a skip set. Any failure means "upload
// everything": resume is an optimization, not a correctness requirement.
func (s *Service) resumeSet(ctx context.Context, sessionRef string, total int) map[int]bool {
	missing, err := s.backend.MissingSegments(ctx, sessionRef)
	if err != nil {
		s.logger.Debug("missing-segment query failed, uploading all", zap.Error(err))
		return nil
	}
	if len(missing) >= total {
		return nil
	}

	skip := make(map[int]bool, total)
	for i := 1; i <= total; i++ {
		skip[i] = true
	}
	for _, index := range missing {
		delete(skip, index)
	}
	return skip
}

// fail records a terminal failure, distinguishing user cancellation from
// genuine errors so the presentation layer never routes a cancel through the
// error/retry path.
func (s *Service) fail(task *model.Task, kind model.ErrorKind, err error) {
	s.mu.Lock()
	task.FinishedAt = time.Now()
	s.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		metrics.TasksTotal.WithLabelValues("cancelled").Inc()
		s.logger.Info("task cancelled", zap.String("task", task.ID))
		s.setState(task, model.StateError(model.ErrorCancelled, "cancelled"))
		return
	}

	metrics.TasksTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Warn("task failed",
		zap.String("task", task.ID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	s.setState(task, model.StateError(kind, err.Error()))
}

// finish records pipeline completion at the given checkpoint.
func (s *Service) finish(task *model.Task, resultRef string, cp model.Checkpoint) {
	s.mu.Lock()
	if resultRef != "" {
		task.DownloadRef = resultRef
	} else {
		resultRef = task.DownloadRef
	}
	task.FinishedAt = time.Now()
	s.mu.Unlock()

	s.registry.Observe(task.Identity.Key(), stage.StageDone)
	metrics.TasksTotal.WithLabelValues("finished").Inc()
	s.logger.Info("task finished",
		zap.String("task", task.ID),
		zap.String("result", resultRef),
		zap.Int("checkpoint", int(cp)),
	)
	s.setState(task, model.StateFinished(resultRef, cp))
}
