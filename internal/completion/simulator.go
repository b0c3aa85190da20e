package completion

import (
	"time"

	"bosim/internal/model"
)

const (
	// LateProbability is the chance that a delivered buy order completes late.
	LateProbability = 0.2
	// MinLateDays and MaxLateDays bound the delay of a late completion, inclusive.
	MinLateDays = 1
	MaxLateDays = 5
)

const ResourceType = "buyOrders"

// Rand is the randomness the simulator draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type Attributes struct {
	Completed string `json:"completed"`
}

type Body = model.Document[Attributes]

// Patch is one update request; ID goes into the request path, not the body.
type Patch struct {
	ID   model.ExternalID `json:"id"`
	Body Body             `json:"body"`
}

type Result struct {
	Patches []Patch      `json:"patch_items"`
	Count   int          `json:"count"`
	Skipped []model.Skip `json:"skipped,omitempty"`
}

// Records returns the completion decisions behind the patches.
func (r Result) Records() []model.CompletionRecord {
	out := make([]model.CompletionRecord, 0, len(r.Patches))
	for _, p := range r.Patches {
		out = append(out, model.CompletionRecord{BuyOrderID: p.ID, Completed: p.Body.Data.Attributes.Completed})
	}
	return out
}

// Build decides completion for every order whose expected delivery date is on
// or before the UTC day of now. When an order carries no id, ids[i] (aligned
// with orders) is used instead. Orders without id or parseable date, and
// future-dated orders, are skipped.
func Build(orders []model.CreatedBuyOrderRef, ids []model.ExternalID, now time.Time, rng Rand) Result {
	cutoff := model.EndOfDay(now)
	res := Result{Patches: []Patch{}}
	for i, o := range orders {
		id := o.ID
		if id.IsZero() && i < len(ids) {
			id = ids[i]
		}
		expected, ok := model.ParseDate(o.ExpectedDeliveryDate)
		switch {
		case !ok:
			res.Skipped = append(res.Skipped, model.Skip{Index: i, Reason: model.ReasonMissingDate})
			continue
		case id.IsZero():
			res.Skipped = append(res.Skipped, model.Skip{Index: i, Reason: model.ReasonMissingID})
			continue
		case expected.After(cutoff):
			res.Skipped = append(res.Skipped, model.Skip{Index: i, Reason: model.ReasonFutureDate})
			continue
		}
		res.Patches = append(res.Patches, Patch{
			ID:   id,
			Body: model.NewDocument(ResourceType, Attributes{Completed: completedAt(o.ExpectedDeliveryDate, expected, rng)}),
		})
	}
	res.Count = len(res.Patches)
	return res
}

// completedAt keeps the expected date verbatim for on-time orders and pushes
// late ones by MinLateDays..MaxLateDays whole days.
func completedAt(raw string, expected time.Time, rng Rand) string {
	if rng.Float64() >= LateProbability {
		return raw
	}
	days := MinLateDays + rng.Intn(MaxLateDays-MinLateDays+1)
	return model.FormatInstant(expected.AddDate(0, 0, days))
}
