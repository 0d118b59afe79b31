package stage

// Package stage defines the open-ended vocabulary of remote pipeline stages,
// the observation value yielded while polling, and the process-wide registry
// that remembers the last known stage per content identity.
