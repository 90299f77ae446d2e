package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"ibovflow/models"
)

// fakeObjectStore keeps objects in memory and records metadata for
// inspection.
type fakeObjectStore struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	f.objects[key] = data
	f.metadata[key] = metadata
	return nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func sampleRecords() []models.NormalizedRecord {
	return []models.NormalizedRecord{
		{
			Cod:                 models.StringPtr("PETR4"),
			Asset:               models.StringPtr("PETROBRAS"),
			Type:                models.StringPtr("PN N2"),
			Segment:             models.StringPtr("Petróleo"),
			Part:                models.FloatPtr(2.85),
			TheoricalQty:        models.FloatPtr(4602542378),
			ExtractionDate:      "2026-08-26",
			ExtractionTimestamp: 1787925600000,
			DataDate:            models.StringPtr("25/08/26"),
			TotalTheoreticalQty: models.FloatPtr(89850290),
			Reductor:            models.FloatPtr(16615179.3795),
		},
		{
			Cod:                 models.StringPtr("VALE3"),
			Asset:               models.StringPtr("VALE"),
			ExtractionDate:      "2026-08-26",
			ExtractionTimestamp: 1787925600000,
			// part, theoricalQty and header fields missing
		},
	}
}

func TestPartitionKeys(t *testing.T) {
	date := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	if got, want := RawPartitionKey(date), "ibovespa-data/year=2026/month=08/day=26/ibovespa_20260826.parquet"; got != want {
		t.Errorf("raw key:\n got %s\nwant %s", got, want)
	}
	if got, want := TransformedPartitionKey(date), "ibovespa-data-transformed/year=2026/month=08/day=26/ibovespa_transformed_20260826.parquet"; got != want {
		t.Errorf("transformed key:\n got %s\nwant %s", got, want)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjectStore()
	store := NewStore(objects)
	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	records := sampleRecords()
	if err := store.WriteRaw(ctx, records, date, 0); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, columns, err := store.ReadRaw(ctx, date)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("record count: got %d, want %d", len(got), len(records))
	}

	for i := range records {
		checkStringPtr(t, i, "cod", got[i].Cod, records[i].Cod)
		checkStringPtr(t, i, "asset", got[i].Asset, records[i].Asset)
		checkStringPtr(t, i, "segment", got[i].Segment, records[i].Segment)
		checkFloatPtr(t, i, "part", got[i].Part, records[i].Part)
		checkFloatPtr(t, i, "theoricalQty", got[i].TheoricalQty, records[i].TheoricalQty)
		if got[i].ExtractionDate != records[i].ExtractionDate {
			t.Errorf("record %d extraction_date: got %q", i, got[i].ExtractionDate)
		}
		if got[i].ExtractionTimestamp != records[i].ExtractionTimestamp {
			t.Errorf("record %d extraction_timestamp: got %d", i, got[i].ExtractionTimestamp)
		}
	}

	for _, required := range []string{"cod", "asset", "part", "theoricalQty"} {
		found := false
		for _, c := range columns {
			if c == required {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("column %s missing from footer schema: %v", required, columns)
		}
	}
}

func checkStringPtr(t *testing.T, i int, name string, got, want *string) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("record %d %s: got %q, want missing", i, name, *got)
	case want != nil && got == nil:
		t.Errorf("record %d %s: got missing, want %q", i, name, *want)
	case want != nil && *got != *want:
		t.Errorf("record %d %s: got %q, want %q", i, name, *got, *want)
	}
}

func checkFloatPtr(t *testing.T, i int, name string, got, want *float64) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("record %d %s: got %v, want missing", i, name, *got)
	case want != nil && got == nil:
		t.Errorf("record %d %s: got missing, want %v", i, name, *want)
	case want != nil && *got != *want:
		t.Errorf("record %d %s: got %v, want %v", i, name, *got, *want)
	}
}

func TestWriteRawRejectsEmpty(t *testing.T) {
	objects := newFakeObjectStore()
	store := NewStore(objects)

	err := store.WriteRaw(context.Background(), nil, time.Now(), 0)
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("empty write must not mutate the store")
	}
}

func TestReadRawNotFound(t *testing.T) {
	store := NewStore(newFakeObjectStore())

	_, _, err := store.ReadRaw(context.Background(), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteRawOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeObjectStore())
	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	first := []models.NormalizedRecord{{Cod: models.StringPtr("OLD1"), Asset: models.StringPtr("OLD")}}
	second := []models.NormalizedRecord{
		{Cod: models.StringPtr("NEW1"), Asset: models.StringPtr("NEW")},
		{Cod: models.StringPtr("NEW2"), Asset: models.StringPtr("NEW")},
	}

	if err := store.WriteRaw(ctx, first, date, 0); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := store.WriteRaw(ctx, second, date, 0); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, _, err := store.ReadRaw(ctx, date)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Cod == nil || *got[0].Cod != "NEW1" {
		t.Fatalf("overwrite semantics violated: %+v", got)
	}
}

func TestWriteRawMetadata(t *testing.T) {
	objects := newFakeObjectStore()
	store := NewStore(objects)
	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	if err := store.WriteRaw(context.Background(), sampleRecords(), date, 2); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta := objects.metadata[RawPartitionKey(date)]
	if meta["source"] != "b3-ibovespa" {
		t.Errorf("source metadata: %q", meta["source"])
	}
	if meta["record_count"] != "2" {
		t.Errorf("record_count metadata: %q", meta["record_count"])
	}
	if meta["pages_failed"] != "2" {
		t.Errorf("pages_failed metadata: %q", meta["pages_failed"])
	}
	if meta["extraction_date"] != "2026-08-26" {
		t.Errorf("extraction_date metadata: %q", meta["extraction_date"])
	}
}

func TestAggregateRoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjectStore()
	store := NewStore(objects)
	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	aggs := []models.AggregateRecord{
		{Acao: "PETROBRAS", QtdCodigo: 2, Participacao: 6.5, QtdTeoricaTotal: 9000000, Data: "2026-08-26"},
		{Acao: "VALE", QtdCodigo: 1, Participacao: 11.6, QtdTeoricaTotal: 4539007580, Data: "2026-08-26"},
	}
	if err := store.WriteAggregates(ctx, aggs, date); err != nil {
		t.Fatalf("write aggregates: %v", err)
	}

	meta := objects.metadata[TransformedPartitionKey(date)]
	if meta["source"] != "b3-ibovespa-transformed" {
		t.Errorf("source metadata: %q", meta["source"])
	}
	if meta["schema_version"] != "1.0" {
		t.Errorf("schema_version metadata: %q", meta["schema_version"])
	}

	got, err := store.ReadAggregates(ctx, date)
	if err != nil {
		t.Fatalf("read aggregates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("aggregate count: got %d", len(got))
	}
	for i := range aggs {
		if got[i] != aggs[i] {
			t.Errorf("aggregate %d mismatch: got %+v, want %+v", i, got[i], aggs[i])
		}
	}
}

func TestWriteAggregatesRejectsEmpty(t *testing.T) {
	store := NewStore(newFakeObjectStore())
	err := store.WriteAggregates(context.Background(), nil, time.Now())
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestLocalObjectStore(t *testing.T) {
	ctx := context.Background()
	local := NewLocalObjectStore(t.TempDir())

	key := "ibovespa-data/year=2026/month=08/day=26/ibovespa_20260826.parquet"
	if err := local.Put(ctx, key, []byte("payload"), map[string]string{"source": "b3-ibovespa"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := local.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("unexpected payload: %q", data)
	}

	if _, err := local.Get(ctx, "ibovespa-data/year=1999/month=01/day=01/missing.parquet"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent key, got %v", err)
	}
}
