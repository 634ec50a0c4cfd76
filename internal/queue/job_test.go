package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The wire format is shared with the other services; field names are part
// of the contract.
func TestJobDescriptor_WireFormat(t *testing.T) {
	desc := JobDescriptor{
		SourceBlobID:     "abc123",
		ResultBlobID:     "def456",
		Owner:            "alice@example.com",
		Status:           StatusConverted,
		OriginalFilename: "holiday.mp4",
		FileSize:         2048,
	}

	body, err := json.Marshal(desc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))

	assert.Equal(t, "abc123", raw["video_fid"])
	assert.Equal(t, "def456", raw["mp3_fid"])
	assert.Equal(t, "alice@example.com", raw["username"])
	assert.Equal(t, "converted", raw["status"])
}

func TestJobDescriptor_ResultOmittedWhileUploaded(t *testing.T) {
	desc := JobDescriptor{
		SourceBlobID: "abc123",
		Owner:        "alice@example.com",
		Status:       StatusUploaded,
	}

	body, err := json.Marshal(desc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))

	_, present := raw["mp3_fid"]
	assert.False(t, present, "mp3_fid must be absent until the converter sets it")
}
