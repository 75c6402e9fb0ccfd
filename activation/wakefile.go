package activation

import (
	"fmt"
	"path/filepath"

	"github.com/aouyang1/inkframe/util"
)

// WakeFiles writes the per-frame wake file read by the frame firmware.
type WakeFiles struct {
	dir string
}

func NewWakeFiles(dir string) *WakeFiles {
	return &WakeFiles{dir: dir}
}

// Path is static/frame<CODE>.txt.
func (w *WakeFiles) Path(code string) string {
	return filepath.Join(w.dir, "frame"+code+".txt")
}

// Write replaces the wake file for code with the comma separated hours.
func (w *WakeFiles) Write(code, hours string) error {
	if err := util.WriteFileAtomic(w.Path(code), []byte(hours), 0o644); err != nil {
		return fmt.Errorf("failed to write wake file for frame %s: %w", code, err)
	}
	return nil
}
