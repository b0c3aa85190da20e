package normalize

import (
	"strings"
	"testing"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	v, err := Decode(strings.NewReader(s))
	if err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestBuyOrders_PrefersFirstSource(t *testing.T) {
	boOnly := mustDecode(t, `{"data":{"buy_orders":[{"product_id":1,"supplier_id":9,"quantity":3,"unit_price":2.5,"placed":"2024-01-01","expected_delivery_date":"2024-01-05"}]}}`)
	full := mustDecode(t, `{"buy_orders":[{"product_id":2},{"product_id":3}]}`)

	got := BuyOrders(From("bo_only", boOnly), From("simulation", full))
	if got.Source != "bo_only" || got.Adapter != "field:buy_orders" {
		t.Fatalf("unexpected match: %s/%s", got.Source, got.Adapter)
	}
	if len(got.Records) != 1 {
		t.Fatalf("want 1 record, got %d", len(got.Records))
	}
	bo := got.Records[0]
	if bo.ProductID != 1 || bo.SupplierID != 9 || bo.Quantity != 3 || bo.UnitPrice != 2.5 || bo.Placed != "2024-01-01" {
		t.Fatalf("unexpected record: %+v", bo)
	}
}

func TestBuyOrders_FallsBackWhenFirstAbsentOrUnrecognised(t *testing.T) {
	full := mustDecode(t, `{"buy_orders":[{"product_id":2,"quantity":"abc"}]}`)
	got := BuyOrders(From("bo_only", nil), From("junk", mustDecode(t, `{"foo":1}`)), From("simulation", full))
	if got.Source != "simulation" || len(got.Records) != 1 {
		t.Fatalf("expected fallback to simulation, got %+v", got)
	}
	if got.Records[0].Quantity != 0 {
		t.Fatalf("non-numeric quantity must coerce to 0: %+v", got.Records[0])
	}
}

func TestBuyOrders_FlatRowsAndEmpty(t *testing.T) {
	rows := mustDecode(t, `[{"product_id":5,"supplier_id":1,"quantity":1,"unit_price":1}]`)
	if got := BuyOrders(From("rows", rows)); got.Adapter != "buy-order-rows" || len(got.Records) != 1 {
		t.Fatalf("flat rows not recognised: %+v", got)
	}
	got := BuyOrders(From("x", mustDecode(t, `"nope"`)))
	if got.Found() || got.Records == nil || len(got.Records) != 0 {
		t.Fatalf("unrecognised input must give empty non-nil result: %+v", got)
	}
}

func TestItemDeliveries_PrefersMetaEcho(t *testing.T) {
	echo := mustDecode(t, `{"data":{"buy_order_bodies":[],"item_deliveries_meta":[{"order_index":1,"quantity":2,"delivered_at":"2024-01-06"}]}}`)
	sim := mustDecode(t, `{"item_deliveries":[{"order_index":0,"quantity":9,"delivered_at":"2024-01-02"}]}`)
	got := ItemDeliveries(From("echo", echo), From("simulation", sim))
	if got.Source != "echo" || len(got.Records) != 1 || got.Records[0].OrderIndex != 1 {
		t.Fatalf("unexpected: %+v", got)
	}
	missing := ItemDeliveries(From("sim", mustDecode(t, `{"item_deliveries":[{"quantity":1}]}`)))
	if missing.Records[0].OrderIndex != -1 {
		t.Fatalf("missing order_index must be -1: %+v", missing.Records[0])
	}
}

func TestOnly(t *testing.T) {
	a, b := From("a", 1), From("b", 2)
	if got := Only("b", a, b); len(got) != 1 || got[0].Value != 2 {
		t.Fatalf("Only(b)=%+v", got)
	}
	if got := Only("", a, b); got != nil {
		t.Fatalf("empty name must select nothing: %+v", got)
	}
	if got := Only("c", a, b); got != nil {
		t.Fatalf("unknown name must select nothing: %+v", got)
	}
}

func TestStocks(t *testing.T) {
	sim := mustDecode(t, `{"result":{"stocks":[{"product_id":1,"product_uuid":"u'1","webshop_id":1380,"webshop_uuid":"w","on_hand":4,"date":"2024-01-01"}]}}`)
	got := Stocks(From("simulation", sim))
	if len(got.Records) != 1 || got.Records[0].ProductUUID != "u'1" || got.Records[0].WebshopID != 1380 {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestCompletionOrders_DedupRows(t *testing.T) {
	rows := mustDecode(t, `{"data":[
		{"bo_id":42,"bol_id":1,"bo_expected_delivery_date":"2024-01-05"},
		{"bo_id":42,"bol_id":2,"bo_expected_delivery_date":"2024-01-05"},
		{"bo_id":43,"bol_id":3,"expected_delivery_date":"2024-02-01"}]}`)
	got := CompletionOrders(From("bo_rows", rows))
	if got.Adapter != "bo-rows" {
		t.Fatalf("adapter: %s", got.Adapter)
	}
	if len(got.Records) != 2 {
		t.Fatalf("want 2 deduped orders, got %d", len(got.Records))
	}
	if got.Records[0].ID != "42" || got.Records[0].ExpectedDeliveryDate != "2024-01-05" {
		t.Fatalf("unexpected first: %+v", got.Records[0])
	}
	if got.Records[1].ID != "43" || got.Records[1].ExpectedDeliveryDate != "2024-02-01" {
		t.Fatalf("unexpected second: %+v", got.Records[1])
	}
}

func TestCompletionOrders_NestedAndFlatResponses(t *testing.T) {
	resp := mustDecode(t, `[
		{"data":{"id":100,"attributes":{"expectedDeliveryDate":"2024-01-05T00:00:00Z","orderLines":[{"id":555}]}}},
		{"id":"101","expectedDeliveryDate":"2024-01-06"},
		{"data":{"attributes":{"expectedDeliveryDate":"2024-01-07"}}}]`)
	got := CompletionOrders(From("bo_rows", nil), From("loop", resp))
	if got.Adapter != "create-responses" || len(got.Records) != 3 {
		t.Fatalf("unexpected: %+v", got)
	}
	if got.Records[0].ID != "100" || got.Records[0].LineID != "555" {
		t.Fatalf("nested: %+v", got.Records[0])
	}
	if got.Records[1].ID != "101" || got.Records[1].ExpectedDeliveryDate != "2024-01-06" {
		t.Fatalf("flat: %+v", got.Records[1])
	}
	if !got.Records[2].ID.IsZero() {
		t.Fatalf("missing id should stay zero: %+v", got.Records[2])
	}
}

func TestCreatedRefs_LineIDShapes(t *testing.T) {
	resp := mustDecode(t, `{"result":[
		{"data":{"id":1,"attributes":{"orderLines":[{"id":555}]}}},
		{"data":{"id":2,"included":[{"type":"suppliers","id":9},{"type":"buyOrderLines","id":556}]}},
		{"data":{"id":3},"included":[{"type":"buy-order-lines","id":"557"}]},
		null,
		{"data":{"id":5,"attributes":{"orderLines":[]}}}]}`)
	refs := CreatedRefs(resp)
	if len(refs) != 5 {
		t.Fatalf("positions must be preserved, got %d", len(refs))
	}
	want := []string{"555", "556", "557", "", ""}
	for i, w := range want {
		if string(refs[i].LineID) != w {
			t.Fatalf("ref %d line id=%q want %q", i, refs[i].LineID, w)
		}
	}
	if len(CreatedRefs(mustDecode(t, `{"unexpected":true}`))) != 0 {
		t.Fatalf("unrecognised shape must give no refs")
	}
}

func TestIDs(t *testing.T) {
	ids := IDs(mustDecode(t, `{"data":[7,null,"x"]}`))
	if len(ids) != 3 || ids[0] != "7" || !ids[1].IsZero() || ids[2] != "x" {
		t.Fatalf("unexpected ids: %#v", ids)
	}
	if IDs(nil) != nil {
		t.Fatalf("nil input must give nil ids")
	}
}

func TestBORows(t *testing.T) {
	rows := mustDecode(t, `{"data":[{"bo_id":1,"bol_id":10,"quantity":"4","bol_expected_delivery_date":"2024-01-02 00:00:00"}]}`)
	got := BORows(From("fetch_bo_data", rows))
	if len(got.Records) != 1 {
		t.Fatalf("want 1 row, got %d", len(got.Records))
	}
	r := got.Records[0]
	if r.BOLID != "10" || r.Quantity != 4 || r.BOLExpectedDeliveryDate != "2024-01-02 00:00:00" {
		t.Fatalf("unexpected row: %+v", r)
	}
}
