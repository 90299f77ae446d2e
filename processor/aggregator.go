package processor

import (
	"fmt"
	"strings"
	"time"

	"ibovflow/logger"
	"ibovflow/models"
)

// requiredColumns are the snapshot columns the aggregation depends on.
var requiredColumns = []string{"asset", "cod", "part", "theoricalQty"}

// SchemaError reports required columns missing from a snapshot read back
// from the partitioned store. It aborts the transform step.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required columns missing: %s", strings.Join(e.Missing, ", "))
}

// VerifyColumns checks the column set of a stored snapshot against the
// aggregation requirements before any grouping happens.
func VerifyColumns(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, c := range requiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// Aggregate groups normalized records by asset and computes per-asset
// summary rows: instrument count, participation sum and theoretical quantity
// sum. Output rows follow first-occurrence order of the grouping key.
func Aggregate(records []models.NormalizedRecord) []models.AggregateRecord {
	return AggregateAt(records, time.Now())
}

// AggregateAt is Aggregate with an injected clock for the constant data
// column.
func AggregateAt(records []models.NormalizedRecord, now time.Time) []models.AggregateRecord {
	log := logger.GetLogger().WithComponent("aggregator")

	data := now.Format("2006-01-02")
	index := make(map[string]int)
	out := make([]models.AggregateRecord, 0)

	for _, rec := range records {
		// Rows without an asset have no grouping key and are excluded,
		// matching missing-key semantics of the snapshot schema.
		if rec.Asset == nil {
			continue
		}
		asset := *rec.Asset

		i, ok := index[asset]
		if !ok {
			i = len(out)
			index[asset] = i
			out = append(out, models.AggregateRecord{Acao: asset, Data: data})
		}

		if rec.Cod != nil {
			out[i].QtdCodigo++
		}
		// Missing numeric values are excluded from the sums.
		if rec.Part != nil {
			out[i].Participacao += *rec.Part
		}
		if rec.TheoricalQty != nil {
			out[i].QtdTeoricaTotal += *rec.TheoricalQty
		}
	}

	log.WithFields(logger.Fields{
		"input_records": len(records),
		"groups":        len(out),
	}).Info("aggregation complete")

	return out
}
