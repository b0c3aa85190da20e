package normalize

import (
	"bosim/internal/model"
)

var buyOrderAdapters = []Adapter{
	FieldArray("buy_orders"),
	RowArray("buy-order-rows", HasAny("product_id", "supplier_id", "unit_price")),
}

var itemDeliveryAdapters = []Adapter{
	FieldArray("item_deliveries_meta"),
	FieldArray("item_deliveries"),
	RowArray("delivery-rows", HasAny("order_index", "delivered_at")),
}

var stockAdapters = []Adapter{
	FieldArray("stocks"),
	RowArray("stock-rows", HasAny("product_uuid", "on_hand")),
}

// BuyOrders resolves buy orders from the first source that carries them.
// Callers pass the buy-orders-only simulation result before the full one.
func BuyOrders(sources ...Source) Resolved[model.BuyOrder] {
	return mapResolved(Resolve(sources, buyOrderAdapters...), toBuyOrder)
}

// ItemDeliveries resolves delivery events, preferring the echo written by the
// buy-order builder over the raw simulation output.
func ItemDeliveries(sources ...Source) Resolved[model.ItemDelivery] {
	return mapResolved(Resolve(sources, itemDeliveryAdapters...), toItemDelivery)
}

func Stocks(sources ...Source) Resolved[model.StockRow] {
	return mapResolved(Resolve(sources, stockAdapters...), toStockRow)
}

// BORows resolves persisted buy-order/line join rows.
func BORows(sources ...Source) Resolved[model.BORow] {
	return mapResolved(Resolve(sources, RowArray("bo-rows", nil)), toBORow)
}

func toBuyOrder(rec any) model.BuyOrder {
	return model.BuyOrder{
		ProductID:            model.Int(Field(rec, "product_id")),
		SupplierID:           model.Int(Field(rec, "supplier_id")),
		Quantity:             model.Number(Field(rec, "quantity")),
		UnitPrice:            model.Number(Field(rec, "unit_price")),
		Placed:               model.Text(Field(rec, "placed")),
		ExpectedDeliveryDate: model.Text(Field(rec, "expected_delivery_date")),
	}
}

func toItemDelivery(rec any) model.ItemDelivery {
	return model.ItemDelivery{
		OrderIndex:  model.Index(Field(rec, "order_index")),
		Quantity:    model.Number(Field(rec, "quantity")),
		DeliveredAt: model.Text(Field(rec, "delivered_at")),
	}
}

func toStockRow(rec any) model.StockRow {
	return model.StockRow{
		ProductID:   model.Int(Field(rec, "product_id")),
		ProductUUID: model.Text(Field(rec, "product_uuid")),
		WebshopID:   model.Int(Field(rec, "webshop_id")),
		WebshopUUID: model.Text(Field(rec, "webshop_uuid")),
		OnHand:      model.Number(Field(rec, "on_hand")),
		Date:        model.Text(Field(rec, "date")),
	}
}

func toBORow(rec any) model.BORow {
	return model.BORow{
		BOID:                    model.ID(Field(rec, "bo_id")),
		BOLID:                   model.ID(Field(rec, "bol_id")),
		Quantity:                model.Number(Field(rec, "quantity")),
		BOExpectedDeliveryDate:  model.Text(Field(rec, "bo_expected_delivery_date")),
		BOLExpectedDeliveryDate: model.Text(Field(rec, "bol_expected_delivery_date")),
		ExpectedDeliveryDate:    model.Text(Field(rec, "expected_delivery_date")),
	}
}
