package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/mechevo/simulator/internal/storage/memory/export/v1"
	"github.com/vmihailenco/msgpack/v5"
)

// Export formats
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

var nameReplacer = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

// exportFileName builds <scenario>_<timestamp>_<shortid>.<ext>[.gz]
func (b *Backend) exportFileName(data *v1.RunData) string {
	name := nameReplacer.Replace(data.Info.ScenarioName)
	if name == "" {
		name = "run"
	}
	timestamp := data.Info.StartedAt.Format("20060102_150405")

	shortID := data.Info.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	ext := FormatJSON
	if b.cfg.Format == FormatMsgpack {
		ext = FormatMsgpack
	}
	if b.cfg.CompressOutput {
		ext += ".gz"
	}
	return fmt.Sprintf("%s_%s_%s.%s", name, timestamp, shortID, ext)
}

// export writes the run to the output directory and returns the file path
func (b *Backend) export(data *v1.RunData) (string, error) {
	export := v1.Build(data)
	outputPath := filepath.Join(b.cfg.OutputDir, b.exportFileName(data))

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gzWriter *gzip.Writer
	if b.cfg.CompressOutput {
		gzWriter = gzip.NewWriter(f)
		w = gzWriter
	}

	if err := encode(w, b.cfg.Format, export); err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	if gzWriter != nil {
		if err := gzWriter.Close(); err != nil {
			return "", fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return outputPath, nil
}

func encode(w io.Writer, format string, export v1.Export) error {
	if format == FormatMsgpack {
		return msgpack.NewEncoder(w).Encode(export)
	}
	return json.NewEncoder(w).Encode(export)
}
