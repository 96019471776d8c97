package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

// Local extracts text on this machine with the eino file loader. It is the
// fallback when no remote extraction endpoint is configured. Attachments
// are staged under stagingDir for the duration of one load.
type Local struct {
	loader     *file.FileLoader
	stagingDir string
}

func NewLocal(stagingDir string) (*Local, error) {
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	if stagingDir == "" {
		stagingDir = filepath.Join(os.TempDir(), "docent-uploads")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Local{loader: loader, stagingDir: stagingDir}, nil
}

func (l *Local) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	staged, err := l.stage(filename, data)
	if err != nil {
		return "", err
	}
	defer os.Remove(staged)

	docs, err := l.loader.Load(ctx, document.Source{URI: staged})
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}
	return strings.TrimSpace(builder.String()), nil
}

// stage writes the attachment to disk so the loader can address it by URI.
// The extension is preserved because the ext parser dispatches on it.
func (l *Local) stage(filename string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	tmp, err := os.CreateTemp(l.stagingDir, "attach-*"+ext)
	if err != nil {
		return "", fmt.Errorf("stage attachment: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close attachment: %w", err)
	}
	return tmp.Name(), nil
}

// StartSweeper removes staged files older than ttl on an interval. Normal
// extraction cleans up after itself; the sweeper only handles leftovers
// from interrupted runs.
func (l *Local) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep(ttl)
			}
		}
	}()
}

func (l *Local) sweep(ttl time.Duration) {
	entries, err := os.ReadDir(l.stagingDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-ttl)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(l.stagingDir, entry.Name()))
		}
	}
}
