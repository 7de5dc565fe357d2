package service

import "errors"

// Workflow failure taxonomy. Every failure in the analyze and history flows
// is caught at the workflow boundary and surfaced to the user as one of
// these; none are retried automatically.
var (
	ErrNoInputSelected    = errors.New("no image selected")
	ErrUnauthenticated    = errors.New("sign in to run an analysis")
	ErrAnalysisInFlight   = errors.New("an analysis is already running")
	ErrAnalysisLockFailed = errors.New("analysis coordination unavailable")
	ErrUploadFailed       = errors.New("image upload failed")
	ErrPredictionFailed   = errors.New("breed prediction failed")
	ErrPersistFailed      = errors.New("saving the scan failed")
	ErrDeleteFailed       = errors.New("deleting the scan failed")
)
