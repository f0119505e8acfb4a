package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heshamhussin961-design/family-tree/pkg/metrics"
)

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return withCode(exitDB, fmt.Errorf("mkdir %s: %w", dir, err))
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return withCode(exitDB, fmt.Errorf("json marshal: %w", err))
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return withCode(exitDB, fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

func manifestPath(dir, runID string, now time.Time) string {
	ts := now.UTC().Format("20060102T150405Z")
	return filepath.Join(dir, fmt.Sprintf("import_manifest_%s_%s.json", ts, runID))
}

// writeMetrics dumps the process registry in the node_exporter textfile format.
func writeMetrics(path string) error {
	if err := metrics.WriteTextfile(path, prometheus.DefaultGatherer); err != nil {
		return withCode(exitDB, fmt.Errorf("write metrics %s: %w", path, err))
	}
	return nil
}
