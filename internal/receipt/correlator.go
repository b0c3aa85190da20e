package receipt

import (
	"bosim/internal/model"
)

const ResourceType = "receiptLines"

type Attributes struct {
	Occurred       model.Instant    `json:"occurred"`
	Quantity       float64          `json:"quantity"`
	BuyOrderLineID model.ExternalID `json:"buyOrderLineId"`
}

type Body = model.Document[Attributes]

type Result struct {
	Bodies  []Body       `json:"receipt_line_bodies"`
	Skipped []model.Skip `json:"skipped,omitempty"`
}

func newBody(occurred string, quantity float64, lineID model.ExternalID) Body {
	return model.NewDocument(ResourceType, Attributes{
		Occurred:       model.ToISOZ(occurred),
		Quantity:       quantity,
		BuyOrderLineID: lineID,
	})
}

// Correlate links each delivery to the order line created for the buy order
// at position OrderIndex. refs must be the create responses in creation
// order, one per buy order; neither slice may be reordered or
// filtered before the call. Deliveries that cannot be linked are dropped.
func Correlate(deliveries []model.ItemDelivery, refs []model.CreatedBuyOrderRef) Result {
	res := Result{Bodies: []Body{}}
	for i, d := range deliveries {
		if d.OrderIndex < 0 || d.OrderIndex >= len(refs) {
			res.Skipped = append(res.Skipped, model.Skip{Index: i, Reason: model.ReasonNoResponse})
			continue
		}
		lineID := refs[d.OrderIndex].LineID
		if lineID.IsZero() {
			res.Skipped = append(res.Skipped, model.Skip{Index: i, Reason: model.ReasonMissingLineID})
			continue
		}
		res.Bodies = append(res.Bodies, newBody(d.DeliveredAt, d.Quantity, lineID))
	}
	return res
}
