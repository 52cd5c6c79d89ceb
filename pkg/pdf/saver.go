package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Saver persists a finished document under a filename.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) error
}

// SaverFunc adapts a function to Saver
type SaverFunc func(ctx context.Context, filename string, data []byte) error

func (f SaverFunc) Save(ctx context.Context, filename string, data []byte) error {
	return f(ctx, filename, data)
}

// DirSaver writes documents into a local directory.
type DirSaver struct {
	Dir string
}

func (s DirSaver) Save(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(s.Dir, filepath.Base(SafeFilename(filename)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var separatorReplacer = strings.NewReplacer("/", "-", "\\", "-")

// SafeFilename keeps a name verbatim except for path separators.
func SafeFilename(name string) string {
	return separatorReplacer.Replace(strings.TrimSpace(name))
}
