package stocksql

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bosim/internal/model"
)

const Table = "stocks"

// Columns is the fixed insert column list; tuples follow this order.
var Columns = []string{"product_id", "product_uuid", "webshop_id", "webshop_uuid", "on_hand", "date"}

// Snapshot is the rendered insert plus the input rows echoed as received.
// Rows keeps the typed form for exports.
type Snapshot struct {
	Values    string           `json:"sql_values"`
	Statement string           `json:"sql"`
	Stocks    []any            `json:"stocks"`
	Rows      []model.StockRow `json:"-"`
}

type Builder struct {
	log *zap.Logger
}

func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{log: log}
}

// Build renders rows as one bulk upsert into stocks. echo is returned as
// Stocks untouched; without it the typed rows are echoed. Empty input yields
// an empty statement and is reported as a warning only.
func (b *Builder) Build(rows []model.StockRow, echo []any) Snapshot {
	if echo == nil {
		echo = make([]any, 0, len(rows))
		for _, r := range rows {
			echo = append(echo, r)
		}
	}
	if len(rows) == 0 {
		b.log.Warn("stock snapshot: no stock rows to insert")
		return Snapshot{Stocks: echo, Rows: []model.StockRow{}}
	}
	tuples := make([]string, 0, len(rows))
	for _, r := range rows {
		tuples = append(tuples, Tuple(r))
	}
	values := strings.Join(tuples, ",\n")
	b.log.Debug("stock snapshot rendered", zap.Int("rows", len(rows)))
	return Snapshot{
		Values:    values,
		Statement: Statement(values),
		Stocks:    echo,
		Rows:      rows,
	}
}

// Statement wraps rendered tuples into the insert. Re-running a snapshot for
// the same product and day overwrites on_hand and revives soft-deleted rows.
func Statement(values string) string {
	if values == "" {
		return ""
	}
	return fmt.Sprintf("INSERT INTO %s (%s)\nVALUES\n%s\nON CONFLICT (product_id, date)\nDO UPDATE SET on_hand = EXCLUDED.on_hand, deleted_at = NULL;",
		Table, strings.Join(Columns, ", "), values)
}

// Tuple renders one row as a SQL tuple literal.
func Tuple(r model.StockRow) string {
	return fmt.Sprintf("(%d, '%s', %d, '%s', %s, '%s')",
		r.ProductID,
		Escape(r.ProductUUID),
		r.WebshopID,
		Escape(r.WebshopUUID),
		strconv.FormatFloat(r.OnHand, 'f', -1, 64),
		Escape(r.Date),
	)
}

// Escape doubles single quotes for use inside a SQL string literal.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
