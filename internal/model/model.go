// Package model defines the core data types shared across the indexing and
// search pipeline: Source, Document, Chunk and Job.
package model

import "time"

// DocumentStatus is the lifecycle state of a Document.
type DocumentStatus string

const (
	DocumentStatusNew     DocumentStatus = "new"
	DocumentStatusScanned DocumentStatus = "scanned"
	DocumentStatusChanged DocumentStatus = "changed"
	DocumentStatusIndexed DocumentStatus = "indexed"
	DocumentStatusError   DocumentStatus = "error"
	DocumentStatusDeleted DocumentStatus = "deleted"
)

// JobType identifies the kind of work a Job performs.
type JobType string

const (
	JobTypeScanSource  JobType = "scan_source"
	JobTypeIndexDoc    JobType = "index_doc"
	JobTypeReindexAll  JobType = "reindex_all"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Source is a registered input: a filesystem directory or a bookmarks file.
type Source struct {
	ID        string
	Name      string
	Path      string
	Config    map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is a discovered unit of content within a Source.
type Document struct {
	ID        string
	SourceID  string
	URI       string
	Title     string
	MimeType  string
	SizeBytes int64
	MTime     time.Time
	DocHash   string
	Status    DocumentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a contiguous token-window slice of a Document's extracted text.
type Chunk struct {
	ID          string
	DocID       string
	ChunkIndex  int
	Text        string
	StartOffset int
	EndOffset   int
	ChunkHash   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Job is a unit of asynchronous work processed by the JobRunner.
type Job struct {
	ID        string
	Type      JobType
	Status    JobStatus
	Progress  float64
	Error     string
	Payload   map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScanSourcePayload is the typed payload for a scan_source Job.
type ScanSourcePayload struct {
	SourceID string
}

// IndexDocPayload is the typed payload for an index_doc Job.
type IndexDocPayload struct {
	DocID string
}
