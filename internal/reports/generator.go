package reports

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// ArtifactPrefix starts the file name of every report artifact.
const ArtifactPrefix = "msp_billing_report_"

// Artifacts holds the paths of the files written for one run.
type Artifacts struct {
	TextPath string
	JSONPath string
}

// Paths returns the artifact paths in a stable order.
func (a *Artifacts) Paths() []string {
	return []string{a.TextPath, a.JSONPath}
}

// ArtifactBaseName returns the artifact file name without extension for a
// run generated at t.
func ArtifactBaseName(t time.Time) string {
	return ArtifactPrefix + t.Format("20060102_150405")
}

// Generator writes report artifacts to an output directory.
type Generator struct {
	outputDir string
	logger    zerolog.Logger
}

// NewGenerator creates a new report generator.
func NewGenerator(outputDir string, logger zerolog.Logger) *Generator {
	if outputDir == "" {
		outputDir = "."
	}
	return &Generator{
		outputDir: outputDir,
		logger:    logger.With().Str("component", "report_generator").Logger(),
	}
}

// Write renders both artifacts and writes them. Both are rendered before
// anything touches the disk; if the second write fails the first file is
// removed so a run leaves either both artifacts or none. Artifacts of
// earlier runs are never overwritten.
func (g *Generator) Write(r *Report) (*Artifacts, error) {
	text := RenderText(r)
	doc, err := RenderJSON(r)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	artifacts, err := g.writeUnique(ArtifactBaseName(r.GeneratedAt), text, doc)
	if err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("text", artifacts.TextPath).
		Str("json", artifacts.JSONPath).
		Msg("report written")

	return artifacts, nil
}

// maxNameAttempts bounds the numeric suffixes tried when a run's artifact
// names are already taken.
const maxNameAttempts = 100

// writeUnique writes both artifacts under name, or name_1, name_2, ... when
// a file with that name exists. Existing files are never overwritten.
func (g *Generator) writeUnique(name string, text, doc []byte) (*Artifacts, error) {
	for n := 0; n < maxNameAttempts; n++ {
		base := name
		if n > 0 {
			base = fmt.Sprintf("%s_%d", name, n)
		}
		base = filepath.Join(g.outputDir, base)
		artifacts := &Artifacts{
			TextPath: base + ".txt",
			JSONPath: base + ".json",
		}

		err := writeExclusive(artifacts.TextPath, text)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("write text report: %w", err)
		}

		err = writeExclusive(artifacts.JSONPath, doc)
		if err == nil {
			return artifacts, nil
		}
		if rmErr := os.Remove(artifacts.TextPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			g.logger.Warn().Err(rmErr).Str("path", artifacts.TextPath).Msg("failed to remove partial report")
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return nil, fmt.Errorf("write json report: %w", err)
	}
	return nil, fmt.Errorf("write report: no free file name for %s after %d attempts", name, maxNameAttempts)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
