package metrics

// Package metrics exposes Prometheus collectors for the ingestion engine.
