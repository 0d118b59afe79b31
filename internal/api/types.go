package api

import (
	"github.com/yang-kun-long/insight-ingest/internal/model"
	"github.com/yang-kun-long/insight-ingest/internal/stage"
)

// InitRequest is the body for POST /ingestions. Total is the segment count
// the client intends to upload; zero means "preflight only" and never opens
// an upload session.
type InitRequest struct {
	CourseID      string `json:"courseId"`
	CourseName    string `json:"courseName,omitempty"`
	CourseTitle   string `json:"courseTitle,omitempty"`
	VideoType     string `json:"videoType"`
	VideoID       int64  `json:"videoId"`
	SessionID     int64  `json:"sessionId,omitempty"`
	StartedAt     string `json:"startedAt"`
	Total         int    `json:"total"`
	AutoTranscode bool   `json:"autoTranscode"`
}

// NewInitRequest builds an InitRequest from a content identity.
func NewInitRequest(id model.Identity, total int, autoTranscode bool) InitRequest {
	return InitRequest{
		CourseID:      id.CourseID,
		CourseName:    id.CourseName,
		CourseTitle:   id.CourseTitle,
		VideoType:     id.VideoType,
		VideoID:       id.VideoID,
		SessionID:     id.SessionID,
		StartedAt:     id.StartedAt,
		Total:         total,
		AutoTranscode: autoTranscode,
	}
}

// InitResponse is the result of POST /ingestions. Exactly one of DownloadRef
// (exists) or SessionRef (upload required, unless preflight-only) is set.
type InitResponse struct {
	Exists      bool   `json:"exists"`
	Identity    string `json:"identity"`
	DownloadRef string `json:"downloadRef,omitempty"`
	SessionRef  string `json:"sessionRef,omitempty"`
}

// StatusResponse is the result of the status endpoints of both pipelines.
type StatusResponse struct {
	Stage       stage.Stage `json:"stage"`
	Progress    float64     `json:"progress"`
	DownloadRef string      `json:"downloadRef,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// Observation converts the response to a poller observation.
func (r StatusResponse) Observation() stage.Observation {
	return stage.Observation{Stage: r.Stage, Progress: r.Progress, Message: r.Message}
}

// deepProcessRequest is the body for POST /deep-process.
type deepProcessRequest struct {
	ContentRef string `json:"contentRef"`
}

// missingResponse is the result of GET /ingestions/{sessionRef}/missing.
type missingResponse struct {
	Missing []int `json:"missing"`
}

// errorBody is the structured body of non-success responses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
