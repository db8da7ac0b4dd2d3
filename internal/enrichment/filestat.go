package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type FileStat struct {
	WordCount int
	Path      string
}

type FileStatProbe struct {
	path   string
	logger *zap.Logger
}

func NewFileStatProbe(path string, logger *zap.Logger) *FileStatProbe {
	return &FileStatProbe{path: path, logger: logger}
}

func (p *FileStatProbe) Path() string { return p.path }

// Probe counts the whitespace-separated words of the configured file.
func (p *FileStatProbe) Probe(_ context.Context) Result[FileStat] {
	name := filepath.Base(p.path)

	content, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Unavailable[FileStat](fmt.Sprintf("%s not found.", name))
	}
	if err != nil {
		p.logger.Warn("Failed to read text file", zap.String("path", p.path), zap.Error(err))
		return Unavailable[FileStat](fmt.Sprintf("%s could not be read.", name))
	}

	abs, err := filepath.Abs(p.path)
	if err != nil {
		abs = p.path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	return OK(FileStat{
		WordCount: len(strings.Fields(string(content))),
		Path:      abs,
	})
}
