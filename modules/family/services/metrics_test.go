package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
	"github.com/heshamhussin961-design/family-tree/modules/family/infrastructure/persistence"
)

func TestImportMetrics(t *testing.T) {
	runsBefore := testutil.ToFloat64(familyImportRuns.WithLabelValues(string(StateDone)))
	insertedBefore := testutil.ToFloat64(familyImportRecords.WithLabelValues("inserted"))
	droppedBefore := testutil.ToFloat64(familyImportCodes.WithLabelValues("dropped"))

	rows := make([][]string, 40)
	rows[0] = []string{"1-0", "أحمد"}
	rows[1] = []string{"1-1", "بكر"}
	rows[39] = []string{"9-9"}
	g := grid.FromRows("s", rows)
	_, err := NewImportService(persistence.NewMemoryStore()).ImportGrid(context.Background(), g, ImportOptions{Branch: "ب"})
	require.NoError(t, err)

	require.InDelta(t, runsBefore+1, testutil.ToFloat64(familyImportRuns.WithLabelValues(string(StateDone))), 0)
	require.InDelta(t, insertedBefore+2, testutil.ToFloat64(familyImportRecords.WithLabelValues("inserted")), 0)
	require.InDelta(t, droppedBefore+1, testutil.ToFloat64(familyImportCodes.WithLabelValues("dropped")), 0)
}
