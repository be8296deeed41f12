package lifecycle

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/msmerr"
)

// resolveJava picks the Java binary for a server: the per-server override
// when set, otherwise whatever PATH provides.
func resolveJava(srv *models.Server) (string, error) {
	if srv.JavaPath != "" {
		info, err := os.Stat(srv.JavaPath)
		if err != nil || info.IsDir() {
			return "", fmt.Errorf("configured java path %q: %w", srv.JavaPath, msmerr.ErrRuntimeNotFound)
		}
		return srv.JavaPath, nil
	}

	path, err := exec.LookPath("java")
	if err != nil {
		return "", fmt.Errorf("java not found in PATH: %w", msmerr.ErrRuntimeNotFound)
	}
	return path, nil
}
