package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ensureEULA writes an accepted eula.txt into the server directory when it
// is missing or still declined. Mojang's server refuses to boot otherwise.
func ensureEULA(serverDir string) error {
	path := filepath.Join(serverDir, "eula.txt")

	data, err := os.ReadFile(path)
	if err == nil && strings.Contains(strings.ReplaceAll(string(data), " ", ""), "eula=true") {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read eula.txt: %w", err)
	}

	content := fmt.Sprintf("# Accepted by MSM on %s\neula=true\n", time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write eula.txt: %w", err)
	}
	return nil
}
