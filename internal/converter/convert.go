package converter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FFmpeg extracts the audio track of a video file and encodes it as MP3 by
// shelling out to the ffmpeg binary. Output goes through a temp file that
// is always removed before returning.
type FFmpeg struct {
	Path    string // binary name or absolute path, default "ffmpeg"
	Bitrate string // e.g. "192k"
}

func New(path, bitrate string) FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = "192k"
	}
	return FFmpeg{Path: path, Bitrate: bitrate}
}

func (f FFmpeg) Convert(ctx context.Context, sourcePath string) ([]byte, error) {
	outPath := filepath.Join(os.TempDir(), uuid.NewString()+".mp3")
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, f.Path,
		"-i", sourcePath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", f.Bitrate,
		"-f", "mp3",
		"-y", outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v: %s", err, lastLine(stderr.String()))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read converted audio: %w", err)
	}
	return data, nil
}

// lastLine keeps the diagnostic tail of ffmpeg's stderr; the full dump is
// mostly banner noise.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
