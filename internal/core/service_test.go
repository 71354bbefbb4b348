package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/metrics"
	"github.com/JonMunkholm/datacleaner/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second},
		Engine: config.EngineConfig{PreviewLimit: 2, EqualityFallback: "text", DropColumnMissing: "soft"},
	}
}

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory(time.Hour)
	return NewService(st, testConfig(), metrics.New()), st
}

func loadSample(t *testing.T, svc *Service, session string) Result {
	t.Helper()
	res, err := svc.Load(context.Background(), session, "sample.csv", []byte(sampleCSV))
	require.NoError(t, err)
	return res
}

func TestServiceLoad(t *testing.T) {
	svc, _ := newTestService(t)

	res := loadSample(t, svc, "s1")

	assert.Equal(t, "sample.csv", res.Filename)
	assert.Equal(t, []string{"a", "b"}, res.Headers)
	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 2, res.ShownRows, "preview is capped at the configured limit")
	assert.Equal(t, [][]string{{"1", ""}, {"", "2"}}, res.Rows)
	assert.Equal(t, MsgFileProcessed, res.Message)
	assert.NotEmpty(t, res.Version)
	assert.False(t, res.NoData)
}

func TestServiceOperationsRequireSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ops := map[string]func() error{
		"drop column": func() error { _, err := svc.DropColumn(ctx, "none", "a"); return err },
		"drop rows":   func() error { _, err := svc.DropMissingRows(ctx, "none", DropAny); return err },
		"fill": func() error {
			_, err := svc.FillMissing(ctx, "none", FillOptions{Strategy: FillMean, Columns: []string{"a"}})
			return err
		},
		"filter": func() error {
			_, err := svc.FilterRows(ctx, "none", FilterSpec{"a", OpEqual, "1"})
			return err
		},
		"encode": func() error { _, err := svc.EncodeColumns(ctx, "none", EncodeLabel, []string{"a"}); return err },
		"export": func() error { _, err := svc.Export(ctx, "none", FormatCSV); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, op(), ErrNoActiveSession)
		})
	}
}

func TestServicePreviewOnEmptySession(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Preview(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, p.NoData)
	assert.Equal(t, "N/A", p.Filename)
	assert.Empty(t, p.Headers)
	assert.Empty(t, p.Rows)
	assert.Zero(t, p.TotalRows)
}

func TestServiceDropMissingThenExport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	loadSample(t, svc, "s1")

	res, err := svc.DropMissingRows(ctx, "s1", DropAny)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsDropped)
	assert.Equal(t, 1, res.TotalRows)

	res, err = svc.DropMissingRows(ctx, "s1", DropAny)
	require.NoError(t, err)
	assert.Zero(t, res.RowsDropped, "second drop is a no-op")

	dl, err := svc.Export(ctx, "s1", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "sample_cleaned.csv", dl.Filename)
	assert.Equal(t, ContentTypeCSV, dl.ContentType)
	assert.Equal(t, "a,b\n3,3\n", string(dl.Data))
	assert.NotEmpty(t, dl.ETag)
}

func TestServiceDropColumnNotFoundKeepsTable(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	loaded := loadSample(t, svc, "s1")
	before, err := st.Get(ctx, "s1")
	require.NoError(t, err)

	res, err := svc.DropColumn(ctx, "s1", "zzz")
	assert.ErrorIs(t, err, ErrColumnNotFound)
	assert.Equal(t, []string{"a", "b"}, res.Headers, "result carries the unchanged preview")
	assert.Equal(t, "Column 'zzz' not found in the current data.", res.Message)
	assert.Equal(t, loaded.Version, res.Version)

	after, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, before.Payload, after.Payload)

	p, err := svc.Preview(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Headers)
}

func TestServiceFailedOperationLeavesTableUntouched(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	loadSample(t, svc, "s1")
	before, err := st.Get(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.FilterRows(ctx, "s1", FilterSpec{"a", OpGreater, "ten"})
	assert.ErrorIs(t, err, ErrTypeCoercion)
	_, err = svc.EncodeColumns(ctx, "s1", EncodeLabel, nil)
	assert.ErrorIs(t, err, ErrInvalidColumns)
	_, err = svc.FillMissing(ctx, "s1", FillOptions{Strategy: "max", Columns: []string{"a"}})
	assert.ErrorIs(t, err, ErrInvalidStrategy)

	after, err := st.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, before.Payload, after.Payload)
}

func TestServiceFillFilterEncode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Load(ctx, "s1", "colors.csv", []byte("color,n\nred,1\nblue,\nred,3\n"))
	require.NoError(t, err)

	res, err := svc.FillMissing(ctx, "s1", FillOptions{Strategy: FillMean, Columns: []string{"n"}})
	require.NoError(t, err)
	require.Len(t, res.FillReport, 1)
	assert.Equal(t, 1, res.FillReport[0].Filled)
	assert.Equal(t, "2", res.FillReport[0].Value)

	res, err = svc.FilterRows(ctx, "s1", FilterSpec{"n", OpGreater, "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsRemoved)
	assert.Equal(t, 2, res.TotalRows)

	res, err = svc.EncodeColumns(ctx, "s1", EncodeOneHot, []string{"color"})
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "color_blue", "color_red"}, res.Headers)
	assert.Equal(t, []Dtype{DtypeNumeric, DtypeBoolean, DtypeBoolean}, res.Dtypes)
}

func TestServiceFilterFallbackIsReported(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	loadSample(t, svc, "s1")

	res, err := svc.FilterRows(ctx, "s1", FilterSpec{"a", OpEqual, "one"})
	require.NoError(t, err)
	assert.True(t, res.UsedTextFallback)
	assert.Equal(t, 3, res.RowsRemoved)
}

func TestServiceStrictFallback(t *testing.T) {
	for _, policy := range []string{"strict", "STRICT", " Strict "} {
		t.Run(policy, func(t *testing.T) {
			cfg := testConfig()
			cfg.Engine.EqualityFallback = policy
			svc := NewService(store.NewMemory(time.Hour), cfg, nil)
			ctx := context.Background()
			loadSample(t, svc, "s1")

			res, err := svc.FilterRows(ctx, "s1", FilterSpec{"a", OpEqual, "one"})
			assert.ErrorIs(t, err, ErrTypeCoercion)
			assert.False(t, res.UsedTextFallback)
		})
	}
}

func TestParseEqualityFallback(t *testing.T) {
	tests := map[string]EqualityFallback{
		"strict": FallbackStrict,
		"STRICT": FallbackStrict,
		"text":   FallbackText,
		"Text":   FallbackText,
		"":       FallbackText,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseEqualityFallback(in), "ParseEqualityFallback(%q)", in)
	}
}

func TestServiceFailedLoadClearsSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	loadSample(t, svc, "s1")

	_, err := svc.Load(ctx, "s1", "empty.csv", []byte("a,b\n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	p, err := svc.Preview(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, p.NoData, "failed load returns the session to empty")
}

func TestServiceLoadRejectsBeforeParsing(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 8
	svc := NewService(store.NewMemory(time.Hour), cfg, nil)
	ctx := context.Background()

	_, err := svc.Load(ctx, "s1", "big.csv", []byte(sampleCSV))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.Load(ctx, "s1", "notes.txt", []byte("a"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestServiceCorruptSessionIsCleared(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "s1", store.Record{Payload: "not a table", Filename: "x.csv"}))

	_, err := svc.DropColumn(ctx, "s1", "a")
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = st.Get(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.Put(ctx, "s2", store.Record{Payload: "{}", Filename: "x.csv"}))
	p, err := svc.Preview(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, p.NoData)
	assert.Equal(t, MsgSessionReset, p.Message)
}

func TestServiceClear(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	loadSample(t, svc, "s1")

	require.NoError(t, svc.Clear(ctx, "s1"))
	_, err := svc.Export(ctx, "s1", FormatXLSX)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	assert.NoError(t, svc.Clear(ctx, "s1"), "clearing an empty session is a no-op")
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	loadSample(t, svc, "s1")
	loadSample(t, svc, "s2")

	_, err := svc.DropColumn(ctx, "s1", "a")
	require.NoError(t, err)

	p, err := svc.Preview(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.Headers)
}

// Concurrent mutations of one session must all land; without per-session
// serialization some of these drops would be lost.
func TestServiceConcurrentMutationsDoNotLoseUpdates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 20
	header := []string{"id"}
	row := []string{"1"}
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("c%d", i))
		row = append(row, "x")
	}
	data := strings.Join(header, ",") + "\n" + strings.Join(row, ",") + "\n"
	_, err := svc.Load(ctx, "s1", "wide.csv", []byte(data))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.DropColumn(ctx, "s1", fmt.Sprintf("c%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, err := svc.Preview(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, p.Headers)
}

func TestServiceSweeper(t *testing.T) {
	st := store.NewMemory(10 * time.Millisecond)
	svc := NewService(st, testConfig(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.Load(ctx, "s1", "sample.csv", []byte(sampleCSV))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.StartSessionSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return st.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestServiceRecordsOperationOutcomes(t *testing.T) {
	m := metrics.New()
	svc := NewService(store.NewMemory(time.Hour), testConfig(), m)
	ctx := context.Background()
	loadSample(t, svc, "s1")

	_, err := svc.DropColumn(ctx, "s1", "zzz")
	require.ErrorIs(t, err, ErrColumnNotFound)

	// load/ok and drop_column/rejected
	n, err := testutil.GatherAndCount(m.Registry(), "datacleaner_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
