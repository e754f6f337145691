package tabular

import (
	"errors"
	"testing"

	"github.com/starford/vigil/internal/apperr"
)

func TestDecode_Basic(t *testing.T) {
	data := []byte("Incident ID,Incident Date,State\n10,\"January 5, 2025\",Ohio\n11,\"January 4, 2025\",Texas\n")
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(doc.Header) != 3 || doc.Header[1] != "Incident Date" {
		t.Errorf("header = %v", doc.Header)
	}
	if len(doc.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(doc.Rows))
	}
	recs := doc.Records()
	if recs[0]["Incident Date"] != "January 5, 2025" {
		t.Errorf("date = %q", recs[0]["Incident Date"])
	}
	if doc.Format.CRLF || doc.Format.BOM {
		t.Errorf("format = %+v, want plain", doc.Format)
	}
}

func TestDecode_EmptyFile(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, apperr.ErrNoHeader) {
		t.Errorf("err = %v, want ErrNoHeader", err)
	}
}

func TestDecode_BlankHeader(t *testing.T) {
	if _, err := Decode([]byte(",,\n1,2,3\n")); !errors.Is(err, apperr.ErrNoHeader) {
		t.Errorf("err = %v, want ErrNoHeader", err)
	}
}

func TestDecode_HeaderOnly(t *testing.T) {
	doc, err := Decode([]byte("Incident ID,State\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(doc.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(doc.Rows))
	}
}

func TestDecode_ShortRowPadded(t *testing.T) {
	doc, err := Decode([]byte("Incident ID,State,latitude\n7,Iowa\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rec := doc.Records()[0]
	if v, ok := rec["latitude"]; !ok || v != "" {
		t.Errorf("latitude = %q, %v", v, ok)
	}
}

func TestRoundTrip_CRLFAndBOM(t *testing.T) {
	data := []byte("\xEF\xBB\xBFIncident ID,State\r\n1,Ohio\r\n2,\"Washington, D.C.\"\r\n")
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !doc.Format.CRLF || !doc.Format.BOM {
		t.Fatalf("format = %+v, want CRLF+BOM", doc.Format)
	}
	if doc.Header[0] != "Incident ID" {
		t.Errorf("BOM leaked into header: %q", doc.Header[0])
	}
	out, err := Encode(doc.Header, doc.Rows, doc.Format)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(out) != string(data) {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", out, data)
	}
}

func TestEncode_QuotesEmbeddedComma(t *testing.T) {
	out, err := Encode([]string{"Incident ID", "Incident Date"}, [][]string{{"3", "March 1, 2024"}}, Format{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "Incident ID,Incident Date\n3,\"March 1, 2024\"\n"
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}
