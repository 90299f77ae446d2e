package writer

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"ibovflow/models"
)

// memoryFile implements source.ParquetFile over a byte slice so snapshots
// can be encoded and decoded without touching disk.
type memoryFile struct {
	data []byte
	pos  int64
}

func newMemoryFile() *memoryFile {
	return &memoryFile{}
}

func newMemoryFileFromBytes(data []byte) *memoryFile {
	return &memoryFile{data: data}
}

func (f *memoryFile) Create(name string) (source.ParquetFile, error) {
	return f, nil
}

func (f *memoryFile) Open(name string) (source.ParquetFile, error) {
	return &memoryFile{data: f.data}, nil
}

func (f *memoryFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(len(f.data)) + offset
	}
	if f.pos < 0 {
		f.pos = 0
	}
	return f.pos, nil
}

func (f *memoryFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memoryFile) Write(p []byte) (int, error) {
	f.data = append(f.data, p...)
	f.pos = int64(len(f.data))
	return len(p), nil
}

func (f *memoryFile) Close() error { return nil }

func (f *memoryFile) Bytes() []byte { return f.data }

const parquetParallelism = 4

// encodeParquet writes rows of the given schema template into an in-memory
// parquet file with snappy compression.
func encodeParquet(template interface{}, write func(pw *writer.ParquetWriter) error) ([]byte, error) {
	fw := newMemoryFile()

	pw, err := writer.NewParquetWriter(fw, template, parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	if err := write(pw); err != nil {
		pw.WriteStop()
		return nil, err
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}

	return fw.Bytes(), nil
}

func encodeRecords(records []models.NormalizedRecord) ([]byte, error) {
	return encodeParquet(new(models.NormalizedRecord), func(pw *writer.ParquetWriter) error {
		for _, rec := range records {
			if err := pw.Write(rec); err != nil {
				return fmt.Errorf("write parquet record: %w", err)
			}
		}
		return nil
	})
}

func encodeAggregates(records []models.AggregateRecord) ([]byte, error) {
	return encodeParquet(new(models.AggregateRecord), func(pw *writer.ParquetWriter) error {
		for _, rec := range records {
			if err := pw.Write(rec); err != nil {
				return fmt.Errorf("write parquet record: %w", err)
			}
		}
		return nil
	})
}

// decodeRecords reads a raw partition snapshot back into typed records and
// also returns the column names found in the file footer, so callers can
// validate the stored schema.
func decodeRecords(data []byte) ([]models.NormalizedRecord, []string, error) {
	pr, err := reader.NewParquetReader(newMemoryFileFromBytes(data), new(models.NormalizedRecord), parquetParallelism)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	records := make([]models.NormalizedRecord, num)
	if num > 0 {
		if err := pr.Read(&records); err != nil {
			return nil, nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}

	return records, footerColumns(pr), nil
}

func decodeAggregates(data []byte) ([]models.AggregateRecord, error) {
	pr, err := reader.NewParquetReader(newMemoryFileFromBytes(data), new(models.AggregateRecord), parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	records := make([]models.AggregateRecord, num)
	if num > 0 {
		if err := pr.Read(&records); err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}
	return records, nil
}

// footerColumns lists the leaf column names of a parquet file.
func footerColumns(pr *reader.ParquetReader) []string {
	schema := pr.Footer.GetSchema()
	cols := make([]string, 0, len(schema))
	for i, el := range schema {
		if i == 0 {
			continue // root element
		}
		if el.NumChildren != nil && *el.NumChildren > 0 {
			continue
		}
		cols = append(cols, el.GetName())
	}
	return cols
}
