package receipt

import (
	"bosim/internal/model"
)

// FromRows builds receipt lines straight from persisted order-line rows, for
// buy orders that already exist. The line's own expected date is preferred as
// the receipt moment. Rows without a line id are dropped.
func FromRows(rows []model.BORow) Result {
	res := Result{Bodies: []Body{}}
	for i, r := range rows {
		if r.BOLID.IsZero() {
			res.Skipped = append(res.Skipped, model.Skip{Index: i, Reason: model.ReasonMissingLineID})
			continue
		}
		res.Bodies = append(res.Bodies, newBody(occurred(r), r.Quantity, r.BOLID))
	}
	return res
}

func occurred(r model.BORow) string {
	for _, s := range []string{r.BOLExpectedDeliveryDate, r.BOExpectedDeliveryDate, r.ExpectedDeliveryDate} {
		if s != "" {
			return s
		}
	}
	return ""
}
