package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FetchParameters describes one page request against the B3 index endpoint.
// Field order matters: the struct is serialized to compact JSON and base64
// encoded into the request path, and the API expects this exact key order.
type FetchParameters struct {
	PageNumber int    `json:"pageNumber"`
	PageSize   int    `json:"pageSize"`
	Language   string `json:"language"`
	Index      string `json:"index"`
}

// FlexString is a scalar that the API returns either as a JSON string or as a
// JSON number, depending on locale and field. It always decodes to its raw
// textual form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

func (f FlexString) String() string { return string(f) }

// RawRecord is one instrument row exactly as the API returns it. Cod is
// unique within a page but not across the whole index; dual-class shares of
// the same company share Asset.
type RawRecord struct {
	Cod          string     `json:"cod"`
	Asset        string     `json:"asset"`
	Type         string     `json:"type"`
	Part         FlexString `json:"part"`
	PartAcum     FlexString `json:"partAcum"`
	TheoricalQty FlexString `json:"theoricalQty"`
	Segment      string     `json:"segment"`
}

// EnvelopeHeader carries index-level totals for the trading day.
type EnvelopeHeader struct {
	Date         string     `json:"date"`
	TheoricalQty FlexString `json:"theoricalQty"`
	Reductor     FlexString `json:"reductor"`
}

// PageInfo is the pagination block of an API response.
type PageInfo struct {
	PageNumber   int `json:"pageNumber"`
	TotalRecords int `json:"totalRecords"`
	TotalPages   int `json:"totalPages"`
}

// PageEnvelope is the full decoded API response for one page. After a
// multi-page fetch it holds the consolidated result set; PagesFailed counts
// pages that were skipped after exhausting their retry budget so a partial
// snapshot is never silent.
type PageEnvelope struct {
	Header  EnvelopeHeader `json:"header"`
	Results []RawRecord    `json:"results"`
	Page    PageInfo       `json:"page"`

	PagesFailed int `json:"-"`
}

// Partial reports whether at least one page was lost during a multi-page
// fetch.
func (e *PageEnvelope) Partial() bool { return e.PagesFailed > 0 }

// NormalizedRecord is a cleaned instrument row plus run and header metadata.
// Optional pointers are nil when the source value was absent, the literal
// "None", or could not be coerced to a number. The parquet tags define the
// columnar schema of a raw partition snapshot.
type NormalizedRecord struct {
	Cod          *string  `parquet:"name=cod, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"cod"`
	Asset        *string  `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"asset"`
	Type         *string  `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"type"`
	Segment      *string  `parquet:"name=segment, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"segment"`
	Part         *float64 `parquet:"name=part, type=DOUBLE, repetitiontype=OPTIONAL" json:"part"`
	PartAcum     *float64 `parquet:"name=partAcum, type=DOUBLE, repetitiontype=OPTIONAL" json:"partAcum"`
	TheoricalQty *float64 `parquet:"name=theoricalQty, type=DOUBLE, repetitiontype=OPTIONAL" json:"theoricalQty"`

	ExtractionDate      string   `parquet:"name=extraction_date, type=BYTE_ARRAY, convertedtype=UTF8" json:"extraction_date"`
	ExtractionTimestamp int64    `parquet:"name=extraction_timestamp, type=INT64" json:"extraction_timestamp"`
	DataDate            *string  `parquet:"name=data_date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"data_date"`
	TotalTheoreticalQty *float64 `parquet:"name=total_theoretical_qty, type=DOUBLE, repetitiontype=OPTIONAL" json:"total_theoretical_qty"`
	Reductor            *float64 `parquet:"name=reductor, type=DOUBLE, repetitiontype=OPTIONAL" json:"reductor"`
}

// AggregateRecord is one per-asset summary row of a transformed partition.
type AggregateRecord struct {
	Acao            string  `parquet:"name=acao, type=BYTE_ARRAY, convertedtype=UTF8" json:"acao"`
	QtdCodigo       int64   `parquet:"name=qtd_codigo, type=INT64" json:"qtd_codigo"`
	Participacao    float64 `parquet:"name=participacao, type=DOUBLE" json:"participacao"`
	QtdTeoricaTotal float64 `parquet:"name=qtd_teorica_total, type=DOUBLE" json:"qtd_teorica_total"`
	Data            string  `parquet:"name=data, type=BYTE_ARRAY, convertedtype=UTF8" json:"data"`
}

// StringPtr returns a pointer to s, for building records in tests and
// normalization code.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// FormatFloat renders an optional float for logging.
func FormatFloat(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
