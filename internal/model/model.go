package model

// BuyOrder is the canonical buy order emitted by one simulation run.
// Timestamps are kept as the simulator wrote them; builders normalize them.
type BuyOrder struct {
	ProductID            int64   `json:"product_id"`
	SupplierID           int64   `json:"supplier_id"`
	Quantity             float64 `json:"quantity"`
	UnitPrice            float64 `json:"unit_price"`
	Placed               string  `json:"placed"`
	ExpectedDeliveryDate string  `json:"expected_delivery_date"`
}

// ItemDelivery references a buy order of the same run by its position.
// OrderIndex is -1 when the source carried no usable index.
type ItemDelivery struct {
	OrderIndex  int     `json:"order_index"`
	Quantity    float64 `json:"quantity"`
	DeliveredAt string  `json:"delivered_at"`
}

// CreatedBuyOrderRef is the part of a create-buy-order response later stages need.
type CreatedBuyOrderRef struct {
	ID                   ExternalID `json:"id"`
	ExpectedDeliveryDate string     `json:"expectedDeliveryDate"`
	LineID               ExternalID `json:"lineId"`
}

// BORow is one persisted buy order joined with one of its lines.
type BORow struct {
	BOID                    ExternalID `json:"bo_id"`
	BOLID                   ExternalID `json:"bol_id"`
	Quantity                float64    `json:"quantity"`
	BOExpectedDeliveryDate  string     `json:"bo_expected_delivery_date"`
	BOLExpectedDeliveryDate string     `json:"bol_expected_delivery_date"`
	ExpectedDeliveryDate    string     `json:"expected_delivery_date"`
}

// CompletionRecord is the completion decision for one buy order.
// Completed is empty when no patch should be sent.
type CompletionRecord struct {
	BuyOrderID ExternalID `json:"buyOrderId"`
	Completed  string     `json:"completed,omitempty"`
}

// StockRow is one simulated stock level for a product on a day.
type StockRow struct {
	ProductID   int64   `json:"product_id"`
	ProductUUID string  `json:"product_uuid"`
	WebshopID   int64   `json:"webshop_id"`
	WebshopUUID string  `json:"webshop_uuid"`
	OnHand      float64 `json:"on_hand"`
	Date        string  `json:"date"`
}

// Resource is a JSON:API resource object without id; the id travels in the request path.
type Resource[T any] struct {
	Type       string `json:"type"`
	Attributes T      `json:"attributes"`
}

// Document is a JSON:API request body.
type Document[T any] struct {
	Data Resource[T] `json:"data"`
}

func NewDocument[T any](typ string, attrs T) Document[T] {
	return Document[T]{Data: Resource[T]{Type: typ, Attributes: attrs}}
}

// Skip explains why the record at Index produced no output.
type Skip struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

const (
	ReasonMissingID     = "missing_id"
	ReasonMissingDate   = "missing_date"
	ReasonFutureDate    = "future_date"
	ReasonNoResponse    = "no_response"
	ReasonMissingLineID = "missing_line_id"
)
