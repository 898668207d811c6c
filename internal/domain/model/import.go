package model

import (
	"time"

	"github.com/paulmach/orb"
)

// ImportStatus tracks an ingestion job.
type ImportStatus string

const (
	ImportStatusQueued    ImportStatus = "queued"
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// FeatureFailure describes a source feature that was not merged.
type FeatureFailure struct {
	Index    int    `json:"index"`
	PlotCode string `json:"plot_code,omitempty"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// ImportRecord is the persisted summary of one dataset import.
type ImportRecord struct {
	Dataset      string
	SourceCRS    string
	CodePrefix   string
	SourceHash   string
	FeatureCount int
	Inserted     int
	Updated      int
	Unchanged    int
	Skipped      int
	Failures     []FeatureFailure
	Bound        *orb.Bound
	Status       ImportStatus
	Error        string
	ImportedAt   time.Time
}

// ImportSubmission is an import request as received from a client. Exactly
// one of Payload and SourceURL is set.
type ImportSubmission struct {
	Dataset    string
	SourceCRS  string
	CodePrefix string
	Defaults   Location
	SourceURL  string
	Payload    []byte
}
