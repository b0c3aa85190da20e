package stocksql

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bosim/internal/model"
)

func TestBuild_EscapesQuotes(t *testing.T) {
	rows := []model.StockRow{
		{ProductID: 1, ProductUUID: "O'Brien", WebshopID: 1380, WebshopUUID: "shop'1", OnHand: 12, Date: "2024-01-01"},
		{ProductID: 2, ProductUUID: "u2", WebshopID: 1380, WebshopUUID: "s", OnHand: 2.5, Date: "2024-01-02"},
	}
	snap := NewBuilder(nil).Build(rows, nil)
	wantValues := "(1, 'O''Brien', 1380, 'shop''1', 12, '2024-01-01'),\n(2, 'u2', 1380, 's', 2.5, '2024-01-02')"
	if snap.Values != wantValues {
		t.Fatalf("values mismatch:\n got %q\nwant %q", snap.Values, wantValues)
	}
	if !strings.HasPrefix(snap.Statement, "INSERT INTO stocks (product_id, product_uuid, webshop_id, webshop_uuid, on_hand, date)\nVALUES\n") {
		t.Fatalf("unexpected statement head: %q", snap.Statement)
	}
	if !strings.Contains(snap.Statement, wantValues) || !strings.HasSuffix(snap.Statement, ";") {
		t.Fatalf("statement does not wrap values: %q", snap.Statement)
	}
	if len(snap.Stocks) != 2 || snap.Stocks[0].(model.StockRow).ProductUUID != "O'Brien" || len(snap.Rows) != 2 {
		t.Fatalf("echo must be unmodified: %+v", snap.Stocks)
	}
}

func TestBuild_EmptyInputWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	snap := NewBuilder(zap.New(core)).Build(nil, nil)
	if snap.Statement != "" || snap.Values != "" {
		t.Fatalf("empty input must give empty statement: %+v", snap)
	}
	if snap.Stocks == nil || len(snap.Stocks) != 0 {
		t.Fatalf("empty echo must be non-nil and empty")
	}
	if logs.Len() != 1 {
		t.Fatalf("want one warning, got %d", logs.Len())
	}
}

func TestBuild_EchoesRawRecords(t *testing.T) {
	raw := []any{map[string]any{"product_id": "1", "product_uuid": nil, "extra": true}}
	rows := []model.StockRow{{ProductID: 1, WebshopID: 2, OnHand: 3, Date: "2024-01-01"}}
	snap := NewBuilder(nil).Build(rows, raw)
	rec, ok := snap.Stocks[0].(map[string]any)
	if !ok || rec["extra"] != true || rec["product_uuid"] != nil || rec["product_id"] != "1" {
		t.Fatalf("echo must be the records as received: %+v", snap.Stocks)
	}
	if snap.Rows[0].ProductID != 1 {
		t.Fatalf("typed rows lost: %+v", snap.Rows)
	}
}

func TestEscape(t *testing.T) {
	if got := Escape("a''b'"); got != "a''''b''" {
		t.Fatalf("Escape: %q", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	rows := []model.StockRow{{ProductID: 7, ProductUUID: "p", WebshopID: 1, WebshopUUID: "w", OnHand: 3, Date: "2024-01-01"}}
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rows); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	got, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != 2 || got[0][0] != "product_id" || got[1][0] != "7" || got[1][1] != "p" {
		t.Fatalf("unexpected sheet: %v", got)
	}
}
