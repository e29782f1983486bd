package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// conflictedFiles returns the paths git currently reports as unmerged.
func (r *Resolver) conflictedFiles(ctx context.Context) ([]string, error) {
	out, stderr, err := r.git(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("listing conflicted files: %w: %s", err, stderr)
	}
	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func (r *Resolver) readWorkingFile(ctx context.Context, relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.gitDir, relPath))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", relPath, err)
	}
	return string(data), nil
}

func (r *Resolver) writeWorkingFile(ctx context.Context, relPath, content string) error {
	path := filepath.Join(r.gitDir, relPath)
	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("writing %s: %w", relPath, err)
	}
	return nil
}
