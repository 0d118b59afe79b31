package model

// Phase is the coarse task lifecycle phase.
type Phase string

const (
	// PhaseWaiting means the task is between transfer stages; WaitKind says
	// which stage it is waiting on.
	PhaseWaiting Phase = "Waiting"

	// PhaseDownloading means payload bytes are being pulled from the backend.
	PhaseDownloading Phase = "Downloading"

	// PhaseUploading means segments are being transferred.
	PhaseUploading Phase = "Uploading"

	// PhaseTranscoding means a remote pipeline is processing the content.
	PhaseTranscoding Phase = "Transcoding"

	// PhaseFinished means a pipeline completed. Not a sink: a follow-on deep
	// processing pipeline may re-enter PhaseWaiting from here.
	PhaseFinished Phase = "Finished"

	// PhaseError is terminal for the task instance. Recovery is a fresh task
	// with the same parameters.
	PhaseError Phase = "Error"
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	return string(p)
}

// WaitKind narrows PhaseWaiting.
type WaitKind string

const (
	WaitCheck     WaitKind = "check"
	WaitDownload  WaitKind = "download"
	WaitUpload    WaitKind = "upload"
	WaitTranscode WaitKind = "transcode"
	WaitServer    WaitKind = "server"
)

// ErrorKind narrows PhaseError.
type ErrorKind string

const (
	ErrorDownload  ErrorKind = "download"
	ErrorUpload    ErrorKind = "upload"
	ErrorTranscode ErrorKind = "transcode"
	ErrorCancelled ErrorKind = "cancelled"
)

// Checkpoint records how far through the two-pipeline flow a task has
// progressed, so PhaseFinished is unambiguous about which follow-on actions
// are valid.
type Checkpoint int

const (
	// CheckpointNone: first pipeline not finished yet.
	CheckpointNone Checkpoint = iota

	// CheckpointMerged: merge/transcode pipeline done, deep processing not
	// started.
	CheckpointMerged

	// CheckpointDeepRunning: deep processing pipeline in flight.
	CheckpointDeepRunning

	// CheckpointDeepDone: both pipelines done.
	CheckpointDeepDone
)

// State is the externally visible state of one task. Only the fields relevant
// to the current Phase are meaningful.
type State struct {
	Phase      Phase
	Wait       WaitKind  // PhaseWaiting
	Label      string    // optional presentation label
	Progress   float64   // 0.0 to 1.0 for transfer/processing phases
	ResultRef  string    // PhaseFinished: reference to the processed content
	ErrKind    ErrorKind // PhaseError
	Message    string    // PhaseError: surfaced verbatim when remote-provided
	Checkpoint Checkpoint
}

// StateWaiting builds a Waiting state.
func StateWaiting(kind WaitKind, label string) State {
	return State{Phase: PhaseWaiting, Wait: kind, Label: label}
}

// StateDownloading builds a Downloading state.
func StateDownloading(progress float64) State {
	return State{Phase: PhaseDownloading, Progress: progress}
}

// StateUploading builds an Uploading state.
func StateUploading(progress float64) State {
	return State{Phase: PhaseUploading, Progress: progress}
}

// StateTranscoding builds a Transcoding state.
func StateTranscoding(progress float64, label string) State {
	return State{Phase: PhaseTranscoding, Progress: progress, Label: label}
}

// StateFinished builds a Finished state at the given checkpoint.
func StateFinished(resultRef string, cp Checkpoint) State {
	return State{Phase: PhaseFinished, Progress: 1.0, ResultRef: resultRef, Checkpoint: cp}
}

// StateError builds a terminal Error state.
func StateError(kind ErrorKind, message string) State {
	return State{Phase: PhaseError, ErrKind: kind, Message: message}
}

// Active reports whether the task still has work in flight.
func (s State) Active() bool {
	switch s.Phase {
	case PhaseWaiting, PhaseDownloading, PhaseUploading, PhaseTranscoding:
		return true
	}
	return false
}

// Terminal reports whether no further transitions will happen without an
// explicit user action.
func (s State) Terminal() bool {
	return s.Phase == PhaseError || s.Phase == PhaseFinished
}

// Cancelled reports whether the task ended by user cancellation. The
// distinction matters: cancelled tasks must not take the error/retry path.
func (s State) Cancelled() bool {
	return s.Phase == PhaseError && s.ErrKind == ErrorCancelled
}
