package processor

import (
	"strconv"
	"strings"
	"time"

	"ibovflow/logger"
	"ibovflow/models"
)

// Normalize converts a page envelope into typed records with cleaned fields
// and uniform run metadata. An envelope without results yields an empty
// slice, never an error; a structural fault during the transform is logged
// and also yields an empty slice.
func Normalize(env *models.PageEnvelope) []models.NormalizedRecord {
	return NormalizeAt(env, time.Now())
}

// NormalizeAt is Normalize with an injected clock, used by tests and the
// pipeline so extraction_date and partition date agree.
func NormalizeAt(env *models.PageEnvelope, now time.Time) (records []models.NormalizedRecord) {
	log := logger.GetLogger().WithComponent("normalizer")

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{"panic": r}).Error("normalization failed, returning empty result")
			records = nil
		}
	}()

	if env == nil || len(env.Results) == 0 {
		log.Warn("no results to normalize")
		return nil
	}

	extractionDate := now.Format("2006-01-02")
	extractionTS := now.UnixMilli()
	dataDate := cleanString(env.Header.Date)
	totalQty := parseHeaderNumber(env.Header.TheoricalQty.String())
	reductor := parseHeaderNumber(env.Header.Reductor.String())

	records = make([]models.NormalizedRecord, 0, len(env.Results))
	for _, raw := range env.Results {
		records = append(records, models.NormalizedRecord{
			Cod:          cleanString(raw.Cod),
			Asset:        cleanString(raw.Asset),
			Type:         cleanString(raw.Type),
			Segment:      cleanString(raw.Segment),
			Part:         coerceNumber(raw.Part.String()),
			PartAcum:     coerceNumber(raw.PartAcum.String()),
			TheoricalQty: coerceNumber(raw.TheoricalQty.String()),

			ExtractionDate:      extractionDate,
			ExtractionTimestamp: extractionTS,
			DataDate:            dataDate,
			TotalTheoreticalQty: totalQty,
			Reductor:            reductor,
		})
	}

	log.WithFields(logger.Fields{"record_count": len(records)}).Info("records normalized")
	return records
}

// coerceNumber applies the row cleaning rule: strip every character that is
// not a digit, comma, period or minus sign, turn commas into periods, then
// parse. Values that still do not parse become missing, never an error.
func coerceNumber(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseHeaderNumber parses index-level totals, which use Brazilian locale
// formatting with dots as thousand separators ("89.850.290" or
// "16.615.179,37950296").
func parseHeaderNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else if strings.Count(s, ".") > 1 {
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// cleanString trims whitespace and maps empty strings and the literal "None"
// to missing.
func cleanString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return nil
	}
	return &s
}
