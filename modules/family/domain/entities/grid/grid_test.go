package grid_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/entities/grid"
)

func TestCells_SkipsBlanksAndTrims(t *testing.T) {
	g := grid.FromRows("s", [][]string{
		{"", " 1-2 ", ""},
		{},
		{"  ", "محمد"},
	})
	require.Equal(t, []grid.Cell{
		{Row: 0, Col: 1, Value: "1-2"},
		{Row: 2, Col: 1, Value: "محمد"},
	}, g.Cells())

	rows, cols := g.Dimensions()
	require.Equal(t, 3, rows)
	require.Equal(t, 3, cols)
}

func TestSample(t *testing.T) {
	g := grid.FromRows("s", [][]string{{"a", "b", "c"}})
	require.Len(t, g.Sample(2), 2)
	require.Len(t, g.Sample(20), 3)
}
