package media

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"

	"photovault/internal/logging"
)

// frameSeekOffset is where a representative frame is taken from. Clips
// shorter than this fall back to the first frame.
const frameSeekOffset = "00:00:01"

// extractVideoFrame materializes the video bytes to a scratch file
// (video decoders need seekable input, not a stream), extracts one frame
// with ffmpeg, and decodes it. The scratch file is removed whether or
// not extraction succeeds.
func extractVideoFrame(data []byte) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found", ErrUnsupportedFormat)
	}

	scratch, err := os.CreateTemp("", "photovault-frame-*.video")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	scratchPath := scratch.Name()
	defer func() {
		if rmErr := os.Remove(scratchPath); rmErr != nil {
			logging.Warn("failed to remove scratch file %s: %v", scratchPath, rmErr)
		}
	}()

	if _, err := scratch.Write(data); err != nil {
		_ = scratch.Close()
		return nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return nil, fmt.Errorf("failed to close scratch file: %w", err)
	}

	frame, err := runFFmpegFrame(scratchPath, true)
	if err != nil {
		logging.Debug("frame extraction at %s failed, retrying from start: %v", frameSeekOffset, err)
		frame, err = runFFmpegFrame(scratchPath, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptInput, err)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode extracted frame: %v", ErrCorruptInput, err)
	}
	return img, nil
}

// runFFmpegFrame extracts a single PNG frame from the file at path,
// seeking to frameSeekOffset when seek is true.
func runFFmpegFrame(path string, seek bool) ([]byte, error) {
	args := []string{"-i", path}
	if seek {
		args = append(args, "-ss", frameSeekOffset)
	}
	args = append(args,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	cmd := exec.Command("ffmpeg", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}
