package upload

// Package upload implements the chunked segment uploader: a payload is split
// into fixed-size segments drained from a shared FIFO queue by a bounded pool
// of workers, with per-segment retry and cooperative cancellation.
