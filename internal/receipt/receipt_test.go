package receipt

import (
	"encoding/json"
	"testing"

	"bosim/internal/model"
)

func TestCorrelate_MatchingResponse(t *testing.T) {
	deliveries := []model.ItemDelivery{{OrderIndex: 0, Quantity: 3, DeliveredAt: "2024-01-06"}}
	refs := []model.CreatedBuyOrderRef{{ID: "1", LineID: "555"}}
	res := Correlate(deliveries, refs)
	if len(res.Bodies) != 1 {
		t.Fatalf("want 1 body, got %+v", res)
	}
	a := res.Bodies[0].Data.Attributes
	if a.BuyOrderLineID != "555" || a.Quantity != 3 || a.Occurred != "2024-01-06Z" {
		t.Fatalf("unexpected attributes: %+v", a)
	}
	raw, _ := json.Marshal(res.Bodies[0])
	want := `{"data":{"type":"receiptLines","attributes":{"occurred":"2024-01-06Z","quantity":3,"buyOrderLineId":555}}}`
	if string(raw) != want {
		t.Fatalf("json mismatch:\n got %s\nwant %s", raw, want)
	}
}

func TestCorrelate_DropsUnresolvable(t *testing.T) {
	deliveries := []model.ItemDelivery{
		{OrderIndex: 0, Quantity: 1, DeliveredAt: "2024-01-02 10:00:00"},
		{OrderIndex: 1, Quantity: 2},  // response without line id
		{OrderIndex: 5, Quantity: 3},  // out of range
		{OrderIndex: -1, Quantity: 4}, // no index
		{OrderIndex: 2, Quantity: 5},
	}
	refs := []model.CreatedBuyOrderRef{{LineID: "10"}, {ID: "2"}, {LineID: "30"}}
	res := Correlate(deliveries, refs)
	if len(res.Bodies) != 2 {
		t.Fatalf("want 2 bodies, got %d", len(res.Bodies))
	}
	if dropped := len(deliveries) - len(res.Bodies); dropped != len(res.Skipped) {
		t.Fatalf("dropped=%d but skipped=%d", dropped, len(res.Skipped))
	}
	if res.Bodies[0].Data.Attributes.BuyOrderLineID != "10" || res.Bodies[1].Data.Attributes.BuyOrderLineID != "30" {
		t.Fatalf("wrong correlation: %+v", res.Bodies)
	}
	if res.Bodies[0].Data.Attributes.Occurred != "2024-01-02T10:00:00Z" {
		t.Fatalf("occurred not normalized: %q", res.Bodies[0].Data.Attributes.Occurred)
	}
	reasons := map[int]string{}
	for _, s := range res.Skipped {
		reasons[s.Index] = s.Reason
	}
	if reasons[1] != model.ReasonMissingLineID || reasons[2] != model.ReasonNoResponse || reasons[3] != model.ReasonNoResponse {
		t.Fatalf("unexpected reasons: %+v", reasons)
	}
}

func TestCorrelate_NoResponsesDropsAll(t *testing.T) {
	deliveries := []model.ItemDelivery{{OrderIndex: 0}, {OrderIndex: 1}}
	res := Correlate(deliveries, nil)
	if len(res.Bodies) != 0 || len(res.Skipped) != 2 {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestCorrelate_EmptyInput(t *testing.T) {
	res := Correlate(nil, nil)
	if res.Bodies == nil || len(res.Bodies) != 0 {
		t.Fatalf("empty input must give empty non-nil bodies")
	}
}

func TestFromRows(t *testing.T) {
	rows := []model.BORow{
		{BOID: "1", BOLID: "11", Quantity: 2, BOLExpectedDeliveryDate: "2024-02-01", BOExpectedDeliveryDate: "2024-01-30"},
		{BOID: "1", BOLID: "12", Quantity: 3, BOExpectedDeliveryDate: "2024-01-30 00:00:00"},
		{BOID: "2", BOLID: "13", ExpectedDeliveryDate: "2024-01-29T08:00:00"},
		{BOID: "3", Quantity: 9},
		{BOID: "4", BOLID: "14"},
	}
	res := FromRows(rows)
	if len(res.Bodies) != 4 || len(res.Skipped) != 1 || res.Skipped[0].Index != 3 {
		t.Fatalf("unexpected: %+v", res)
	}
	want := []model.Instant{"2024-02-01Z", "2024-01-30T00:00:00Z", "2024-01-29T08:00:00Z", ""}
	for i, w := range want {
		if got := res.Bodies[i].Data.Attributes.Occurred; got != w {
			t.Fatalf("body %d occurred=%q want %q", i, got, w)
		}
	}
	if res.Bodies[1].Data.Attributes.BuyOrderLineID != "12" || res.Bodies[1].Data.Attributes.Quantity != 3 {
		t.Fatalf("unexpected body: %+v", res.Bodies[1])
	}
	if empty := FromRows(nil); empty.Bodies == nil || len(empty.Bodies) != 0 {
		t.Fatalf("empty rows must give empty bodies")
	}
}
