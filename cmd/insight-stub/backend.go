package main

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stepDelay paces the simulated pipelines so a client exercises every
// intermediate stage.
const stepDelay = 300 * time.Millisecond

type initRequest struct {
	CourseID      string `json:"courseId"`
	CourseName    string `json:"courseName"`
	CourseTitle   string `json:"courseTitle"`
	VideoType     string `json:"videoType"`
	VideoID       int64  `json:"videoId"`
	SessionID     int64  `json:"sessionId"`
	StartedAt     string `json:"startedAt"`
	Total         int    `json:"total"`
	AutoTranscode bool   `json:"autoTranscode"`
}

type statusBody struct {
	Stage       string  `json:"stage"`
	Progress    float64 `json:"progress"`
	DownloadRef string  `json:"downloadRef,omitempty"`
	Message     string  `json:"message,omitempty"`
}

type session struct {
	ref      string
	identity string
	total    int
	parts    map[int]bool
	status   statusBody
}

type stubBackend struct {
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	contents map[string]string     // identity -> downloadRef for processed content
	deep     map[string]statusBody // identity -> deep pipeline status
}

func newStubBackend(logger *zap.Logger) *stubBackend {
	return &stubBackend{
		logger:   logger,
		sessions: make(map[string]*session),
		contents: make(map[string]string),
		deep:     make(map[string]statusBody),
	}
}

// contentID derives the dedup identity the way the real backend does.
func contentID(req initRequest) string {
	key := fmt.Sprintf("%s|%d|%s|%s", req.CourseID, req.VideoID, req.VideoType, req.StartedAt)
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

func (b *stubBackend) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ts": time.Now().Unix()})
}

func (b *stubBackend) InitIngestion(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CourseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "courseId is required"})
		return
	}

	identity := contentID(req)

	b.mu.Lock()
	defer b.mu.Unlock()

	if ref, ok := b.contents[identity]; ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"exists": true, "identity": identity, "downloadRef": ref,
		})
		return
	}
	if req.Total <= 0 {
		// Preflight only.
		writeJSON(w, http.StatusOK, map[string]any{"exists": false, "identity": identity})
		return
	}

	// Reuse an open session for the same content so clients can resume.
	for _, s := range b.sessions {
		if s.identity == identity && s.status.Stage == "UPLOADING" {
			writeJSON(w, http.StatusOK, map[string]any{
				"exists": false, "identity": identity, "sessionRef": s.ref,
			})
			return
		}
	}

	s := &session{
		ref:      uuid.NewString(),
		identity: identity,
		total:    req.Total,
		parts:    make(map[int]bool),
		status:   statusBody{Stage: "UPLOADING"},
	}
	b.sessions[s.ref] = s

	b.logger.Info("session opened",
		zap.String("sessionRef", s.ref),
		zap.String("identity", identity),
		zap.Int("total", req.Total),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"exists": false, "identity": identity, "sessionRef": s.ref,
	})
}

func (b *stubBackend) PutSegment(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "sessionRef")
	index, err := strconv.Atoi(r.URL.Query().Get("i"))
	if err != nil || index < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid index"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[ref]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid sessionRef"})
		return
	}
	if index > s.total {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index out of range"})
		return
	}

	s.parts[index] = true
	s.status.Progress = float64(len(s.parts)) / float64(s.total)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "received": len(s.parts), "total": s.total})
}

func (b *stubBackend) Missing(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "sessionRef")

	b.mu.Lock()
	defer b.mu.Unlock()

	missing := []int{}
	if s, ok := b.sessions[ref]; ok {
		for i := 1; i <= s.total; i++ {
			if !s.parts[i] {
				missing = append(missing, i)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"missing": missing})
}

func (b *stubBackend) Complete(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "sessionRef")

	b.mu.Lock()
	s, ok := b.sessions[ref]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid sessionRef"})
		return
	}
	for i := 1; i <= s.total; i++ {
		if !s.parts[i] {
			b.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("missing segment %d", i)})
			return
		}
	}
	s.status = statusBody{Stage: "QUEUED"}
	b.mu.Unlock()

	go b.runMergePipeline(s)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (b *stubBackend) Status(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "sessionRef")

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[ref]
	if !ok {
		writeJSON(w, http.StatusOK, statusBody{Stage: "UNKNOWN"})
		return
	}
	writeJSON(w, http.StatusOK, s.status)
}

func (b *stubBackend) StartDeepProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentRef string `json:"contentRef"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContentRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "contentRef is required"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.contents[req.ContentRef]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
		return
	}
	// Idempotent: an already running or finished pipeline is reported, not
	// restarted.
	if st, ok := b.deep[req.ContentRef]; ok && st.Stage != "FAILED" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stage": st.Stage, "progress": st.Progress})
		return
	}

	b.deep[req.ContentRef] = statusBody{Stage: "CHECK"}
	go b.runDeepPipeline(req.ContentRef)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (b *stubBackend) DeepProcessStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "contentRef")

	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.deep[ref]
	if !ok {
		writeJSON(w, http.StatusOK, statusBody{Stage: "UNKNOWN"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// runMergePipeline walks a completed session through the merge/transcode
// stages and registers the processed content for future preflight hits.
func (b *stubBackend) runMergePipeline(s *session) {
	steps := []statusBody{
		{Stage: "QUEUED"},
		{Stage: "MERGING", Progress: 0.5},
		{Stage: "MERGING", Progress: 1.0},
		{Stage: "TRANSCODING", Progress: 0.3},
		{Stage: "TRANSCODING", Progress: 0.9},
	}
	for _, step := range steps {
		time.Sleep(stepDelay)
		b.mu.Lock()
		s.status = step
		b.mu.Unlock()
	}

	time.Sleep(stepDelay)
	ref := "/api/download/" + s.identity
	b.mu.Lock()
	s.status = statusBody{Stage: "DONE", Progress: 1.0, DownloadRef: ref}
	b.contents[s.identity] = ref
	b.mu.Unlock()
	b.logger.Info("content processed", zap.String("identity", s.identity))
}

// runDeepPipeline walks content through the simulated AI pipeline stages.
func (b *stubBackend) runDeepPipeline(contentRef string) {
	steps := []statusBody{
		{Stage: "CHECK", Progress: 0.0},
		{Stage: "REMOTE_UPLOAD", Progress: 0.1},
		{Stage: "SUBMIT", Progress: 0.25},
		{Stage: "POLL", Progress: 0.4},
		{Stage: "POLL", Progress: 0.7},
		{Stage: "INDEX", Progress: 0.85},
		{Stage: "REMOTE_CLEAN", Progress: 0.95},
	}
	for _, step := range steps {
		time.Sleep(stepDelay)
		b.mu.Lock()
		b.deep[contentRef] = step
		b.mu.Unlock()
	}

	time.Sleep(stepDelay)
	b.mu.Lock()
	b.deep[contentRef] = statusBody{Stage: "DONE", Progress: 1.0}
	b.mu.Unlock()
	b.logger.Info("deep processing done", zap.String("contentRef", contentRef))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
