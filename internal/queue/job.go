package queue

// Status of a descriptor as it moves through the pipeline.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusConverted Status = "converted"
)

// JobDescriptor is what we publish to the broker. No bytes here—workers
// fetch the payload from the blob store by SourceBlobID.
//
// SourceBlobID never changes after the descriptor is created. ResultBlobID
// is set exactly once, by the conversion worker, and only after the result
// blob actually exists in the store.
type JobDescriptor struct {
	SourceBlobID     string `json:"video_fid"`
	ResultBlobID     string `json:"mp3_fid,omitempty"`
	Owner            string `json:"username"`
	Status           Status `json:"status"`
	OriginalFilename string `json:"original_filename,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
}
