package model

import "fmt"

// Identity describes one piece of content for deduplication purposes. The
// client asserts it; the backend resolves it authoritatively. Each task
// carries its own Identity value, never shared mutable state.
type Identity struct {
	CourseID    string
	CourseName  string
	CourseTitle string
	VideoType   string
	VideoID     int64
	SessionID   int64
	StartedAt   string
}

// Key returns the dedup key used by the stage registry. The field set matches
// what the backend hashes into its content id.
func (id Identity) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s", id.CourseID, id.VideoID, id.VideoType, id.StartedAt)
}

// DisplayTitle returns the course title, falling back to the course name and
// then the course id.
func (id Identity) DisplayTitle() string {
	if id.CourseTitle != "" {
		return id.CourseTitle
	}
	if id.CourseName != "" {
		return id.CourseName
	}
	return id.CourseID
}
