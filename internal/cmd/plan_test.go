package cmd

import (
	"bytes"
	"testing"

	"github.com/MeKo-Tech/zonetiles/internal/region"
	"github.com/MeKo-Tech/zonetiles/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func worldRegion() *region.Region {
	return &region.Region{
		Name:  "world",
		Zone:  "test",
		Zooms: []region.ZoomRange{{Min: 0, Max: 2}},
		Boxes: []types.BoundingBox{types.World},
	}
}

func TestPlanRegions(t *testing.T) {
	rows, err := planRegions([]*region.Region{worldRegion()}, true)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, planRow{Region: "world", Zone: "test", Zoom: 0, Tiles: 1}, rows[0])
	assert.Equal(t, 4, rows[1].Tiles)
	assert.Equal(t, 16, rows[2].Tiles)

	rows, err = planRegions([]*region.Region{worldRegion()}, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, -1, rows[0].Zoom)
	assert.Equal(t, 21, rows[0].Tiles)
}

func TestWritePlanTable(t *testing.T) {
	rows, err := planRegions([]*region.Region{worldRegion()}, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	total := writePlanTable(&buf, rows, "light")
	assert.Equal(t, 21, total)

	out := buf.String()
	assert.Contains(t, out, "REGION")
	assert.Contains(t, out, "world")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "21")
}

func TestTableStyle(t *testing.T) {
	assert.Equal(t, "StyleLight", tableStyle("LIGHT").Name)
	assert.Equal(t, "StyleDefault", tableStyle("unknown").Name)
}
