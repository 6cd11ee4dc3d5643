package domain

import "errors"

// Turn-level failure taxonomy. All are fatal to the turn; callers
// discriminate with errors.Is. No stage retries internally.
var (
	// ErrSessionNotFound means the chat id is unknown. Raised before any
	// side effect.
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrExtractionFailed means the intent or audience completion call
	// failed. No bot message is persisted.
	ErrExtractionFailed = errors.New("intent/audience extraction failed")

	// ErrRetrievalFailed means a memory or document query failed.
	ErrRetrievalFailed = errors.New("memory retrieval failed")

	// ErrPlanAcquisitionFailed means the planning engine call failed.
	ErrPlanAcquisitionFailed = errors.New("plan acquisition failed")

	// ErrStreamingFailed means the model stream broke mid-generation.
	// Partial content already pushed to the transport remains visible and
	// persistence of the partial message is still attempted.
	ErrStreamingFailed = errors.New("response streaming failed")
)
