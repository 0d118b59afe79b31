package stage

// Stage is a discrete point in a multi-step remote job, as reported by the
// backend. The vocabulary is open-ended: the backend may introduce new values
// at any time, and any value that is not one of the sentinels below must be
// treated as "still processing", never as an error.
type Stage string

// Merge/transcode pipeline stages.
const (
	StageUploading   Stage = "UPLOADING"
	StageQueued      Stage = "QUEUED"
	StageMerging     Stage = "MERGING"
	StageMerged      Stage = "MERGED"
	StageTranscoding Stage = "TRANSCODING"
)

// Deep-processing pipeline stages.
const (
	StageCheck        Stage = "CHECK"
	StageRemoteUpload Stage = "REMOTE_UPLOAD"
	StageRemoteClean  Stage = "REMOTE_CLEAN"
	StageSubmit       Stage = "SUBMIT"
	StagePoll         Stage = "POLL"
	StageIndex        Stage = "INDEX"
)

// Terminal sentinels. DONE ends polling successfully; FAILED and UNKNOWN end
// it with failure.
const (
	StageDone    Stage = "DONE"
	StageFailed  Stage = "FAILED"
	StageUnknown Stage = "UNKNOWN"
)

// Pseudo-stages reported by the preflight resolver so the registry can
// short-circuit duplicate task creation. Never sent by the backend.
const (
	StageExists    Stage = "EXISTS"
	StageNotExists Stage = "NOT_EXISTS"
)

// String returns the raw stage tag.
func (s Stage) String() string {
	return string(s)
}

// Terminal reports whether no further polling is meaningful for this stage.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed || s == StageUnknown
}

// Failed reports whether the stage is a terminal failure.
func (s Stage) Failed() bool {
	return s == StageFailed || s == StageUnknown
}

// Observation is one transient status sample from a remote job: a stage tag,
// a progress fraction in [0,1], and an optional human-readable message.
type Observation struct {
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}
