package normalize

import (
	"bosim/internal/model"
)

// boRowsAdapter recognises persisted order rows (one row per order line) and
// keeps the first row per bo_id.
var boRowsAdapter = Adapter{
	Name: "bo-rows",
	Match: func(v any) ([]any, bool) {
		arr, ok := Array(v)
		if !ok || len(arr) == 0 || !HasAny("bo_id", "bo_expected_delivery_date")(arr[0]) {
			return nil, false
		}
		return DedupBy(arr, "bo_id"), true
	},
}

// createResponsesAdapter accepts create responses, nested ({data:{id,attributes}})
// or flat ({id, expectedDeliveryDate}), element by element.
var createResponsesAdapter = Adapter{
	Name: "create-responses",
	Match: func(v any) ([]any, bool) {
		return Array(v)
	},
}

// CompletionOrders resolves the buy orders to consider for completion.
// Typical priority: persisted rows, an explicit patch source list, then the
// create responses of the buy-order loop.
func CompletionOrders(sources ...Source) Resolved[model.CreatedBuyOrderRef] {
	return mapResolved(Resolve(sources, boRowsAdapter, createResponsesAdapter), toCreatedRef)
}

// CreatedRefs maps a create-response list to one ref per position. Positions
// whose response is missing or unrecognised yield a zero ref, so indexes keep
// lining up with the buy-order list they were created from.
func CreatedRefs(responses any) []model.CreatedBuyOrderRef {
	arr, ok := Array(Unwrap(responses))
	if !ok {
		return []model.CreatedBuyOrderRef{}
	}
	out := make([]model.CreatedBuyOrderRef, len(arr))
	for i, resp := range arr {
		out[i] = toCreatedRef(resp)
	}
	return out
}

// IDs reads a positionally aligned list of bare identifiers.
func IDs(v any) []model.ExternalID {
	arr, ok := Array(v)
	if !ok {
		return nil
	}
	out := make([]model.ExternalID, len(arr))
	for i, x := range arr {
		out[i] = model.ID(x)
	}
	return out
}

// DedupBy keeps the first record per value of key. Records lacking the key
// share one bucket.
func DedupBy(recs []any, key string) []any {
	seen := make(map[model.ExternalID]struct{}, len(recs))
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		k := model.ID(Field(r, key))
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func toCreatedRef(raw any) model.CreatedBuyOrderRef {
	if raw == nil {
		return model.CreatedBuyOrderRef{}
	}
	data := FirstOf(Field(raw, "data"), raw)
	attrs := FirstOf(Field(data, "attributes"), data)
	return model.CreatedBuyOrderRef{
		ID: model.ID(FirstOf(Field(data, "id"), Field(raw, "id"), Field(raw, "bo_id"))),
		ExpectedDeliveryDate: model.Text(FirstOf(
			Field(attrs, "expectedDeliveryDate"),
			Field(raw, "expectedDeliveryDate"),
			Field(raw, "bo_expected_delivery_date"),
			Field(raw, "expected_delivery_date"),
		)),
		LineID: LineID(raw),
	}
}

var lineTypes = map[string]bool{"buyOrderLines": true, "buy-order-lines": true}

// LineID extracts the id of the single order line of a create response:
// data.attributes.orderLines[0].id first, then the first included line.
func LineID(resp any) model.ExternalID {
	if resp == nil {
		return ""
	}
	d := FirstOf(Field(resp, "data"), resp)
	attrs := FirstOf(Field(d, "attributes"), Path(d, "data", "attributes"))
	if id := model.ID(Field(Index(Field(attrs, "orderLines"), 0), "id")); !id.IsZero() {
		return id
	}
	for _, inc := range []any{Field(d, "included"), Path(d, "data", "included"), Field(resp, "included")} {
		arr, ok := inc.([]any)
		if !ok {
			continue
		}
		for _, x := range arr {
			if !lineTypes[model.Text(Field(x, "type"))] {
				continue
			}
			if id := model.ID(Field(x, "id")); !id.IsZero() {
				return id
			}
		}
	}
	return ""
}
