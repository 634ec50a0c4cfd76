package entities

import "time"

// Job is the persisted record of a conversion request. The row is written
// when the upload is accepted and updated best-effort by the workers; the
// pipeline itself never depends on it.
type Job struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	SourceBlobID     string    `json:"source_blob_id"`
	ResultBlobID     *string   `json:"result_blob_id,omitempty"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	Status           string    `json:"status"`
	Error            *string   `json:"error,omitempty"`
	CreatedTimestamp time.Time `json:"created_timestamp"`
	UpdatedTimestamp time.Time `json:"updated_timestamp"`
}

const (
	JobStatusUploaded  = "uploaded"
	JobStatusConverted = "converted"
	JobStatusNotified  = "notified"
	JobStatusFailed    = "failed"
)
