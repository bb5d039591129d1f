package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: write collided with an existing record
// - ErrImmutable: record may never be modified (audit records, compliance events)
// - ErrRetentionNotElapsed: deletion attempted before the retention gate
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrImmutable           = errors.New("immutable")
	ErrRetentionNotElapsed = errors.New("retention not elapsed")
	ErrUnavailable         = errors.New("unavailable")
)
