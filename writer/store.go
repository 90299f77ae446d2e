package writer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ibovflow/logger"
	"ibovflow/models"
)

var (
	// ErrNotFound means the partition for the requested date does not
	// exist. Valid query outcome, distinct from store failures.
	ErrNotFound = errors.New("partition not found")
	// ErrNoRecords rejects writes of empty record sets before any store
	// mutation happens.
	ErrNoRecords = errors.New("no records to write")
	// ErrNoCredentials distinguishes missing AWS credentials from other
	// store failures.
	ErrNoCredentials = errors.New("aws credentials not found")
)

const (
	rawPrefix         = "ibovespa-data"
	transformedPrefix = "ibovespa-data-transformed"
	schemaVersion     = "1.0"
)

// RawPartitionKey is the deterministic object key of a raw snapshot for the
// given calendar date. Writing to the same date overwrites.
func RawPartitionKey(date time.Time) string {
	return fmt.Sprintf("%s/year=%04d/month=%02d/day=%02d/ibovespa_%s.parquet",
		rawPrefix, date.Year(), int(date.Month()), date.Day(), date.Format("20060102"))
}

// TransformedPartitionKey is the object key of an aggregate snapshot for the
// given calendar date.
func TransformedPartitionKey(date time.Time) string {
	return fmt.Sprintf("%s/year=%04d/month=%02d/day=%02d/ibovespa_transformed_%s.parquet",
		transformedPrefix, date.Year(), int(date.Month()), date.Day(), date.Format("20060102"))
}

// ObjectStore is the durable blob capability the partitioned store writes
// through: a key-value store addressable by path with last-write-wins
// semantics. Get returns ErrNotFound for absent keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store persists and reads date-partitioned parquet snapshots.
type Store struct {
	objects ObjectStore
	log     *logger.Log
}

func NewStore(objects ObjectStore) *Store {
	return &Store{objects: objects, log: logger.GetLogger()}
}

// WriteRaw serializes normalized records to parquet and writes them to the
// raw partition for date. Empty record sets are rejected with no side
// effect. pagesFailed is recorded in the object metadata so partial
// snapshots are detectable.
func (s *Store) WriteRaw(ctx context.Context, records []models.NormalizedRecord, date time.Time, pagesFailed int) error {
	key := RawPartitionKey(date)
	log := s.log.WithComponent("store").WithFields(logger.Fields{
		"key":          key,
		"record_count": len(records),
		"operation":    "write_raw",
	})

	if len(records) == 0 {
		log.Warn("empty record set, not writing")
		return ErrNoRecords
	}

	data, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("encode raw snapshot: %w", err)
	}

	metadata := map[string]string{
		"source":          "b3-ibovespa",
		"extraction_date": date.Format("2006-01-02"),
		"record_count":    strconv.Itoa(len(records)),
		"schema_version":  schemaVersion,
		"pages_failed":    strconv.Itoa(pagesFailed),
	}
	if err := s.objects.Put(ctx, key, data, metadata); err != nil {
		return fmt.Errorf("write raw snapshot: %w", err)
	}

	log.WithFields(logger.Fields{"file_size": len(data), "pages_failed": pagesFailed}).Info("raw snapshot written")
	s.log.LogMetric("store", "records_written", int64(len(records)), "counter", logger.Fields{"partition": key})
	return nil
}

// ReadRaw loads the raw partition for date. It returns the records together
// with the column names stored in the parquet footer; callers validate the
// schema before aggregating. Absent partitions surface as ErrNotFound.
func (s *Store) ReadRaw(ctx context.Context, date time.Time) ([]models.NormalizedRecord, []string, error) {
	key := RawPartitionKey(date)
	log := s.log.WithComponent("store").WithFields(logger.Fields{
		"key":       key,
		"operation": "read_raw",
	})

	data, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("raw partition not found")
			return nil, nil, fmt.Errorf("raw partition %s: %w", key, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("read raw snapshot: %w", err)
	}

	records, columns, err := decodeRecords(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode raw snapshot: %w", err)
	}

	log.WithFields(logger.Fields{"record_count": len(records)}).Info("raw snapshot loaded")
	return records, columns, nil
}

// WriteAggregates serializes aggregate rows to parquet and writes them to
// the transformed partition for date, overwriting any previous snapshot.
func (s *Store) WriteAggregates(ctx context.Context, records []models.AggregateRecord, date time.Time) error {
	key := TransformedPartitionKey(date)
	log := s.log.WithComponent("store").WithFields(logger.Fields{
		"key":          key,
		"record_count": len(records),
		"operation":    "write_aggregates",
	})

	if len(records) == 0 {
		log.Warn("empty aggregate set, not writing")
		return ErrNoRecords
	}

	data, err := encodeAggregates(records)
	if err != nil {
		return fmt.Errorf("encode aggregate snapshot: %w", err)
	}

	metadata := map[string]string{
		"source":              "b3-ibovespa-transformed",
		"transformation_date": date.Format("2006-01-02"),
		"record_count":        strconv.Itoa(len(records)),
		"schema_version":      schemaVersion,
	}
	if err := s.objects.Put(ctx, key, data, metadata); err != nil {
		return fmt.Errorf("write aggregate snapshot: %w", err)
	}

	log.WithFields(logger.Fields{"file_size": len(data)}).Info("aggregate snapshot written")
	s.log.LogMetric("store", "aggregates_written", int64(len(records)), "counter", logger.Fields{"partition": key})
	return nil
}

// ReadAggregates loads the transformed partition for date.
func (s *Store) ReadAggregates(ctx context.Context, date time.Time) ([]models.AggregateRecord, error) {
	key := TransformedPartitionKey(date)

	data, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("transformed partition %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read aggregate snapshot: %w", err)
	}

	records, err := decodeAggregates(data)
	if err != nil {
		return nil, fmt.Errorf("decode aggregate snapshot: %w", err)
	}
	return records, nil
}
