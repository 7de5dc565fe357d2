package models

import "time"

// ScanRecord is one persisted breed analysis. ImageURL is never stored; it is
// re-derived from ImageKey on every read because the object store may rotate
// public URLs.
type ScanRecord struct {
	ID              string
	OwnerID         string
	ImageKey        string
	ImageURL        string
	PredictedBreed  string
	ConfidenceScore float64
	CreatedAt       time.Time
}
