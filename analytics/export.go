package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Exporter defines the interface for exporting aggregated snapshots.
type Exporter interface {
	Export(ctx context.Context, data *AggregatedData) error
	Flush(ctx context.Context) error
	Close() error
}

// HTTPExporter batches snapshots and POSTs them to an external endpoint.
type HTTPExporter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	buffer     []*AggregatedData
	batchSize  int
}

func NewHTTPExporter(endpoint, apiKey string, batchSize int) *HTTPExporter {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &HTTPExporter{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		buffer:    make([]*AggregatedData, 0, batchSize),
		batchSize: batchSize,
	}
}

func (e *HTTPExporter) Export(ctx context.Context, data *AggregatedData) error {
	e.buffer = append(e.buffer, data)
	if len(e.buffer) >= e.batchSize {
		return e.Flush(ctx)
	}
	return nil
}

func (e *HTTPExporter) Flush(ctx context.Context) error {
	if len(e.buffer) == 0 {
		return nil
	}

	payload, err := json.Marshal(e.buffer)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send analytics data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("analytics export failed with status %d: %s", resp.StatusCode, string(body))
	}

	e.buffer = e.buffer[:0]
	return nil
}

func (e *HTTPExporter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Flush(ctx)
}

// ConsoleExporter writes snapshots to stdout, mostly for demos.
type ConsoleExporter struct {
	prefix string
}

func NewConsoleExporter(prefix string) *ConsoleExporter {
	return &ConsoleExporter{prefix: prefix}
}

func (e *ConsoleExporter) Export(_ context.Context, data *AggregatedData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", e.prefix, b)
	return nil
}

func (e *ConsoleExporter) Flush(context.Context) error { return nil }
func (e *ConsoleExporter) Close() error                { return nil }

// CSVExporter appends snapshot rows to a file, one row per snapshot.
type CSVExporter struct {
	path        string
	wroteHeader bool
}

func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

var csvHeader = []string{
	"period", "key", "active_users",
	"passes_granted", "passes_used",
	"coin_unlocks", "coins_spent",
	"streaks_continued", "streaks_rescued", "streaks_broken", "freezers_spent",
	"xp_awarded", "level_ups",
}

func (e *CSVExporter) Export(_ context.Context, data *AggregatedData) error {
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !e.wroteHeader {
		if info, err := f.Stat(); err == nil && info.Size() == 0 {
			if err := w.Write(csvHeader); err != nil {
				return err
			}
		}
		e.wroteHeader = true
	}
	row := []string{
		string(data.Period), data.Key, strconv.Itoa(data.ActiveUsers),
		strconv.FormatInt(data.PassesGranted, 10), strconv.FormatInt(data.PassesUsed, 10),
		strconv.FormatInt(data.CoinUnlocks, 10), strconv.FormatInt(data.CoinsSpent, 10),
		strconv.FormatInt(data.StreaksContinued, 10), strconv.FormatInt(data.StreaksRescued, 10),
		strconv.FormatInt(data.StreaksBroken, 10), strconv.FormatInt(data.FreezersSpent, 10),
		strconv.FormatInt(data.XPAwarded, 10), strconv.FormatInt(data.LevelUps, 10),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (e *CSVExporter) Flush(context.Context) error { return nil }
func (e *CSVExporter) Close() error                { return nil }

// ExportManager fans snapshots out to every configured exporter.
type ExportManager struct {
	exporters []Exporter
}

func NewExportManager(exporters ...Exporter) *ExportManager {
	return &ExportManager{exporters: exporters}
}

func (m *ExportManager) ExportData(ctx context.Context, data []*AggregatedData) error {
	for _, d := range data {
		for _, e := range m.exporters {
			if err := e.Export(ctx, d); err != nil {
				return err
			}
		}
	}
	for _, e := range m.exporters {
		if err := e.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *ExportManager) Close() error {
	var firstErr error
	for _, e := range m.exporters {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
