package bundle

import (
	"fmt"
	"log/slog"
	"os"
)

// staging implements atomic output promotion: the bundle is assembled in a
// sibling directory and swapped into place only when complete, so the final
// path never exposes a partially written bundle.
type staging struct {
	outputDir string
	stageDir  string
}

func newStaging(outputDir string) *staging {
	return &staging{outputDir: outputDir}
}

// begin creates the staging directory next to the final output.
func (s *staging) begin() error {
	stage := s.outputDir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	s.stageDir = stage
	slog.Debug("Initialized staging directory", "staging", stage, "final", s.outputDir)
	return nil
}

// finalize promotes staging to the final output path:
//  1. move the existing output (if any) to <output>.prev
//  2. rename staging -> output
//  3. remove the backup
func (s *staging) finalize() error {
	if s.stageDir == "" {
		return fmt.Errorf("no staging directory initialized")
	}
	if _, err := os.Stat(s.stageDir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}

	prev := s.outputDir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("remove stale backup: %w", err)
	}
	if _, err := os.Stat(s.outputDir); err == nil {
		if err := os.Rename(s.outputDir, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(s.stageDir, s.outputDir); err != nil {
		// Try to restore the previous output before reporting.
		if _, statErr := os.Stat(prev); statErr == nil {
			_ = os.Rename(prev, s.outputDir)
		}
		return fmt.Errorf("promote staging: %w", err)
	}
	s.stageDir = ""
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous output backup", "path", prev, "error", err)
	}
	slog.Info("Promoted bundle", "output", s.outputDir)
	return nil
}

// abort discards the staging directory after a failed build.
func (s *staging) abort() {
	if s.stageDir == "" {
		return
	}
	dir := s.stageDir
	s.stageDir = ""
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory after abort", "staging", dir, "error", err)
	}
}
