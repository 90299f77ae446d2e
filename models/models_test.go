package models

import (
	"encoding/json"
	"testing"
)

func TestFlexStringUnmarshal(t *testing.T) {
	var rec RawRecord
	body := `{"cod":"PETR4","asset":"PETROBRAS","type":"PN","part":"2,85","partAcum":1.23,"theoricalQty":"4.602.542.378","segment":null}`
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Part != "2,85" {
		t.Errorf("string part: got %q", rec.Part)
	}
	if rec.PartAcum != "1.23" {
		t.Errorf("numeric partAcum: got %q", rec.PartAcum)
	}
	if rec.TheoricalQty != "4.602.542.378" {
		t.Errorf("theoricalQty: got %q", rec.TheoricalQty)
	}
}

func TestPageEnvelopeUnmarshal(t *testing.T) {
	body := `{
		"header": {"date": "25/08/26", "theoricalQty": "89.850.290", "reductor": "17.024.446"},
		"results": [
			{"cod": "VALE3", "asset": "VALE", "type": "ON NM", "part": "11,605", "theoricalQty": "4.539.007.580", "segment": "Mineração"},
			{"cod": "ITUB4", "asset": "ITAUUNIBANCO", "type": "PN N1", "part": "7,430", "theoricalQty": "4.433.516.065", "segment": "Bancos"}
		],
		"page": {"pageNumber": 1, "totalRecords": 87, "totalPages": 2}
	}`
	var env PageEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(env.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(env.Results))
	}
	if env.Results[0].Cod != "VALE3" || env.Results[1].Cod != "ITUB4" {
		t.Errorf("result order not preserved: %+v", env.Results)
	}
	if env.Page.TotalPages != 2 || env.Page.TotalRecords != 87 {
		t.Errorf("page info mismatch: %+v", env.Page)
	}
	if env.Header.Date != "25/08/26" {
		t.Errorf("header date mismatch: %q", env.Header.Date)
	}
	if env.Partial() {
		t.Errorf("fresh envelope should not be partial")
	}
}

func TestFetchParametersFieldOrder(t *testing.T) {
	p := FetchParameters{PageNumber: 1, PageSize: 1200, Language: "pt-br", Index: "IBOV"}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"pageNumber":1,"pageSize":1200,"language":"pt-br","index":"IBOV"}`
	if string(data) != want {
		t.Fatalf("unexpected encoding: %s", data)
	}
}
