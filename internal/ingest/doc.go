package ingest

// Package ingest implements the core ingestion pipeline on top of the backend
// API client. It manages task lifecycle, preflight dedup short-circuiting,
// segment upload, remote pipeline polling, progress propagation to the
// presentation layer, and cooperative cancellation.
