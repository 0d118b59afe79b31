package model

// Package model defines domain data structures used across the engine:
// ingestion tasks, content identities, and the externally visible task state
// union. Structures are designed for direct binding in a presentation layer
// and explicit state transitions.
