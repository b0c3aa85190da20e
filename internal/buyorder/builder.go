package buyorder

import (
	"github.com/shopspring/decimal"

	"bosim/internal/model"
)

const ResourceType = "buyOrders"

// OrderLine is the only line of a generated buy order.
type OrderLine struct {
	Quantity             float64       `json:"quantity"`
	SubtotalValue        float64       `json:"subtotalValue"`
	ProductID            int64         `json:"productId"`
	ExpectedDeliveryDate model.Instant `json:"expectedDeliveryDate"`
}

type Attributes struct {
	OrderLines           []OrderLine   `json:"orderLines"`
	Placed               model.Instant `json:"placed"`
	ExpectedDeliveryDate model.Instant `json:"expectedDeliveryDate"`
	TotalValue           float64       `json:"totalValue"`
	SupplierID           int64         `json:"supplierId"`
	Assembly             bool          `json:"assembly"`
}

type Body = model.Document[Attributes]

// Result holds one create body per input buy order, in input order, plus the
// delivery events of the same run passed through for the receipt stage.
type Result struct {
	Bodies             []Body               `json:"buy_order_bodies"`
	ItemDeliveriesMeta []model.ItemDelivery `json:"item_deliveries_meta"`
}

// Subtotal returns quantity*unitPrice rounded half-up to cents.
func Subtotal(quantity, unitPrice float64) float64 {
	v, _ := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice)).Round(2).Float64()
	return v
}

// NewBody builds the create request for a single buy order.
func NewBody(bo model.BuyOrder) Body {
	subtotal := Subtotal(bo.Quantity, bo.UnitPrice)
	expected := model.ToISOZ(bo.ExpectedDeliveryDate)
	return model.NewDocument(ResourceType, Attributes{
		OrderLines: []OrderLine{{
			Quantity:             bo.Quantity,
			SubtotalValue:        subtotal,
			ProductID:            bo.ProductID,
			ExpectedDeliveryDate: expected,
		}},
		Placed:               model.ToISOZ(bo.Placed),
		ExpectedDeliveryDate: expected,
		TotalValue:           subtotal,
		SupplierID:           bo.SupplierID,
		Assembly:             false,
	})
}

func Build(orders []model.BuyOrder) Result {
	return BuildWithDeliveries(orders, nil)
}

// BuildWithDeliveries also echoes the run's delivery events so the receipt
// stage can correlate them with the create responses later.
func BuildWithDeliveries(orders []model.BuyOrder, deliveries []model.ItemDelivery) Result {
	res := Result{
		Bodies:             make([]Body, 0, len(orders)),
		ItemDeliveriesMeta: deliveries,
	}
	if res.ItemDeliveriesMeta == nil {
		res.ItemDeliveriesMeta = []model.ItemDelivery{}
	}
	for _, bo := range orders {
		res.Bodies = append(res.Bodies, NewBody(bo))
	}
	return res
}
