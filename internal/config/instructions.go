package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentcore/internal/agent/ports"
)

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ProjectInstructions reads agent.project_instructions_file. A missing file
// or an unset path yields no instructions.
func (m *Manager) ProjectInstructions(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := strings.TrimSpace(m.Config().Agent.ProjectInstructionsFile)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(ExpandHome(path))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read project instructions: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

var _ ports.InstructionsProvider = (*Manager)(nil)
