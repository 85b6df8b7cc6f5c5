package errors

import "errors"

// Shared sentinels. Repos and services wrap these with fmt.Errorf("op: %w", ...)
// so handlers can map them to HTTP codes with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

// Ingestion stage failures. All terminal for the file unless noted.
var (
	// ErrExtractionFailed means neither the primary extraction path nor its
	// fallback produced any usable text.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrDurationLimit rejects over-long videos before any transcript or
	// media work starts.
	ErrDurationLimit = errors.New("video exceeds duration limit")

	// ErrTranscriptUnavailable is internal to the youtube extractor: it
	// routes to the speech-recognition fallback, not to a terminal failure.
	ErrTranscriptUnavailable = errors.New("transcript unavailable")

	// ErrEmbeddingMismatch aborts the embedding stage when the provider
	// returns the wrong vector count or a zero-dimension vector.
	ErrEmbeddingMismatch = errors.New("embedding count or dimension mismatch")

	// ErrConceptGeneration means zero usable concepts came back; downstream
	// material generation depends on concepts, so the file fails.
	ErrConceptGeneration = errors.New("concept generation produced nothing")
)
