// Package workspace manages per-job scratch directories for thumbnails
// and downloaded media.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

// Workspace is a scratch directory owned by exactly one job. Identity is
// (user id, job id), so a resolution job and a download job for the same
// user never collide.
type Workspace struct {
	dir string
}

func New(base string, user int64) (*Workspace, error) {
	dir := filepath.Join(base, fmt.Sprintf("%d-%s", user, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Remove deletes the workspace and everything in it. Safe to call more
// than once; callers defer it so every exit path of a job cleans up.
func (w *Workspace) Remove() {
	if err := os.RemoveAll(w.dir); err != nil {
		logger.Warn("failed to remove workspace", "dir", w.dir, "error", err)
	}
}
