package ingest

import (
	"context"

	"github.com/yang-kun-long/insight-ingest/internal/api"
)

// Backend is the remote surface the engine drives. *api.Client implements it;
// tests script it.
type Backend interface {
	InitIngestion(ctx context.Context, req api.InitRequest) (*api.InitResponse, error)
	UploadSegment(ctx context.Context, sessionRef string, index int, data []byte) error
	MissingSegments(ctx context.Context, sessionRef string) ([]int, error)
	CompleteIngestion(ctx context.Context, sessionRef string) error
	IngestionStatus(ctx context.Context, sessionRef string) (api.StatusResponse, error)
	StartDeepProcess(ctx context.Context, contentRef string) error
	DeepProcessStatus(ctx context.Context, contentRef string) (api.StatusResponse, error)
}
