package poll

// Package poll implements a generic fixed-interval polling loop over a remote
// job's stage-tagged status endpoint.
