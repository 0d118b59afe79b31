package api

// Package api implements the HTTP client for the ingestion backend: upload
// session initialization with dedup preflight, segment transfer, completion,
// and status endpoints for both remote pipelines.
