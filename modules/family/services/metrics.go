package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	familyImportCells = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "family",
		Subsystem: "import",
		Name:      "cells_total",
		Help:      "Total number of spreadsheet cells classified, broken down by kind.",
	}, []string{"kind"})

	familyImportCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "family",
		Subsystem: "import",
		Name:      "codes_total",
		Help:      "Total number of distinct family codes, broken down by match result.",
	}, []string{"result"})

	familyImportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "family",
		Subsystem: "import",
		Name:      "records_total",
		Help:      "Total number of candidate records handled by the linker, broken down by outcome.",
	}, []string{"outcome"})

	familyImportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "family",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Total number of import runs, broken down by final state.",
	}, []string{"state"})
)

func recordCells(kind string, n int) {
	if n <= 0 {
		return
	}
	familyImportCells.WithLabelValues(kind).Add(float64(n))
}

func recordCodes(stats MatchStats) {
	if stats.Matched > 0 {
		familyImportCodes.WithLabelValues("matched").Add(float64(stats.Matched))
	}
	if stats.Dropped > 0 {
		familyImportCodes.WithLabelValues("dropped").Add(float64(stats.Dropped))
	}
}

func recordSummary(s Summary) {
	for outcome, n := range map[string]int{
		"inserted":       s.Inserted,
		"reused":         s.Reused,
		"linked":         s.Linked,
		"already_linked": s.AlreadyLinked,
		"orphaned":       s.Orphaned,
		"rejected":       s.Rejected,
		"failed":         s.Failed,
		"skipped":        s.Skipped,
	} {
		if n > 0 {
			familyImportRecords.WithLabelValues(outcome).Add(float64(n))
		}
	}
}

func recordRun(state RunState) {
	familyImportRuns.WithLabelValues(string(state)).Inc()
}
