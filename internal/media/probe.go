// Package media inspects downloaded files before delivery.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrProbe marks a file that could not be read or is not valid media.
var ErrProbe = errors.New("media: probe failed")

type Properties struct {
	Duration time.Duration
}

// Probe returns container-level properties of the file via ffprobe.
func Probe(ctx context.Context, path string) (Properties, error) {
	if _, err := os.Stat(path); err != nil {
		return Properties{}, fmt.Errorf("%w: %v", ErrProbe, err)
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Properties{}, fmt.Errorf("%w: ffprobe: %v", ErrProbe, err)
	}
	return parseProbeOutput(string(out))
}

func parseProbeOutput(out string) (Properties, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return Properties{}, fmt.Errorf("%w: bad duration %q", ErrProbe, out)
	}
	return Properties{Duration: time.Duration(seconds * float64(time.Second))}, nil
}
