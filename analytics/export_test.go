package analytics

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.csv")
	exp := NewCSVExporter(path)

	data := &AggregatedData{
		Period:        PeriodDaily,
		Key:           "2026-08-31",
		ActiveUsers:   12,
		PassesGranted: 30,
		PassesUsed:    18,
		CoinUnlocks:   4,
		CoinsSpent:    45,
	}
	mgr := NewExportManager(exp)
	require.NoError(t, mgr.ExportData(context.Background(), []*AggregatedData{data, data}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two rows
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "2026-08-31", rows[1][1])
	assert.Equal(t, "30", rows[1][3])
}
