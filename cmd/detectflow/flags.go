package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/report"
	"github.com/alexisbeaulieu97/detectflow/internal/templatesource"
)

// validateTemplatePath checks local template files up front. git::
// locations are checked when they are cloned.
func validateTemplatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("template file is required")
	}
	if templatesource.IsGit(path) {
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve template path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("template file does not exist: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("template path %s is a directory", abs)
	}

	return nil
}

// parseInterval reads the --start and --end flags. Both default relative
// to now: the interval ends now and starts one day earlier.
func parseInterval(start, end, timezone string, now time.Time) (model.DetectionInterval, error) {
	loc := time.UTC
	if timezone != "" {
		parsed, err := time.LoadLocation(timezone)
		if err != nil {
			return model.DetectionInterval{}, fmt.Errorf("timezone: %w", err)
		}
		loc = parsed
	}

	endTime := now
	if end != "" {
		parsed, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return model.DetectionInterval{}, fmt.Errorf("--end: %w", err)
		}
		endTime = parsed
	}

	startTime := endTime.Add(-24 * time.Hour)
	if start != "" {
		parsed, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return model.DetectionInterval{}, fmt.Errorf("--start: %w", err)
		}
		startTime = parsed
	}

	return model.NewDetectionInterval(startTime, endTime, loc)
}

// renderer picks colours only when writing text to a terminal.
func renderer(format string, out io.Writer) report.Renderer {
	color := false
	if f, ok := out.(*os.File); ok && (format == "" || format == report.FormatText) {
		color = term.IsTerminal(int(f.Fd()))
	}
	return report.Renderer{Format: format, Color: color}
}
