package pipeline

import (
	"bytes"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"go.uber.org/zap"

	"bosim/internal/buyorder"
	"bosim/internal/completion"
	"bosim/internal/metrics"
	"bosim/internal/model"
	"bosim/internal/normalize"
	"bosim/internal/outbox"
	"bosim/internal/receipt"
	"bosim/internal/state"
	"bosim/internal/stocksql"
)

const (
	StageBuyOrders        = "buy-orders"
	StageCompletions      = "completions"
	StageReceipts         = "receipts"
	StageReceiptsFromRows = "receipts-from-rows"
	StageStocks           = "stocks"
)

// Stages lists every stage in pipeline order.
var Stages = []string{StageBuyOrders, StageCompletions, StageReceipts, StageReceiptsFromRows, StageStocks}

const (
	PathBuyOrders    = "/v1/buyOrders"
	PathReceiptLines = "/v1/receiptLines"
)

// Inputs are the decoded documents a stage may read. Any field may be nil;
// each stage picks what it needs in a fixed priority order.
type Inputs struct {
	// BuyOrdersOnly is the result of the simulation run restricted to buy orders.
	BuyOrdersOnly any
	// Simulation is the full simulation result (stocks, buy_orders, item_deliveries).
	Simulation any
	// BuyOrderOutput is what the buy-orders stage returned for the same run.
	BuyOrderOutput any
	// Rows are persisted buy-order/line join rows.
	Rows any
	// PatchSource is an explicit list of buy orders to complete.
	PatchSource any
	// Responses are the create responses of the buy-order loop, in creation order.
	Responses any
	// IDs are created buy-order ids aligned with Responses.
	IDs any
}

// Runner ties normalization, a stage and the outbox together.
type Runner struct {
	Log       *zap.Logger
	Out       outbox.Writer
	Metrics   *metrics.Registry
	StockSQL  *stocksql.Builder
	RunID     string
	AccountID string
	Now       func() time.Time
	Rand      completion.Rand
}

func (r *Runner) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now()
}

func (r *Runner) rng() completion.Rand {
	if r.Rand == nil {
		r.Rand = rand.New(rand.NewSource(r.now().UnixNano()))
	}
	return r.Rand
}

func (r *Runner) path(p string) string {
	if r.AccountID == "" {
		return p
	}
	return p + "?accountId=" + url.QueryEscape(r.AccountID)
}

func (r *Runner) publish(stage string, index int, method, path string, body any) error {
	if r.Out == nil {
		return nil
	}
	req, err := outbox.NewRequest(r.RunID, stage, index, method, path, body)
	if err != nil {
		return err
	}
	if err := r.Out.Append(req); err != nil {
		return fmt.Errorf("publish %s: %w", req.Key, err)
	}
	if r.Metrics != nil {
		r.Metrics.Published.Inc()
	}
	return nil
}

func (r *Runner) report(stage string, src, adapter string, in, emitted int, skipped []model.Skip) {
	if r.Metrics != nil {
		r.Metrics.Emitted.WithLabelValues(stage).Add(float64(emitted))
		for _, s := range skipped {
			r.Metrics.Dropped.WithLabelValues(stage, s.Reason).Inc()
		}
	}
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.String("run", r.RunID),
		zap.String("source", src),
		zap.String("adapter", adapter),
		zap.Int("input", in),
		zap.Int("emitted", emitted),
		zap.Int("skipped", len(skipped)),
	}
	if adapter == "" {
		r.log().Warn("no recognizable input, stage produced nothing", fields...)
		return
	}
	r.log().Info("stage done", fields...)
	for _, s := range skipped {
		r.log().Debug("record skipped", zap.String("stage", stage), zap.Int("index", s.Index), zap.String("reason", s.Reason))
	}
}

// BuyOrders builds one create request per simulated buy order. Deliveries
// are taken from the same simulation result as the orders, since their
// order_index points into that result's buy-order list.
func (r *Runner) BuyOrders(in Inputs) (buyorder.Result, error) {
	sources := []normalize.Source{
		normalize.From("buy_orders_only", in.BuyOrdersOnly),
		normalize.From("simulation", in.Simulation),
	}
	orders := normalize.BuyOrders(sources...)
	deliveries := normalize.ItemDeliveries(normalize.Only(orders.Source, sources...)...)
	res := buyorder.BuildWithDeliveries(orders.Records, deliveries.Records)
	for i, b := range res.Bodies {
		if err := r.publish(StageBuyOrders, i, "POST", r.path(PathBuyOrders), b); err != nil {
			return res, err
		}
	}
	r.report(StageBuyOrders, orders.Source, orders.Adapter, len(orders.Records), len(res.Bodies), nil)
	return res, nil
}

// Completions decides which created buy orders are complete as of now.
func (r *Runner) Completions(in Inputs) (completion.Result, error) {
	orders := normalize.CompletionOrders(
		normalize.From("rows", in.Rows),
		normalize.From("patch_source", in.PatchSource),
		normalize.From("responses", in.Responses),
	)
	res := completion.Build(orders.Records, normalize.IDs(in.IDs), r.now(), r.rng())
	for i, p := range res.Patches {
		path := r.path(PathBuyOrders + "/" + url.PathEscape(p.ID.String()))
		if err := r.publish(StageCompletions, i, "PATCH", path, p.Body); err != nil {
			return res, err
		}
	}
	r.report(StageCompletions, orders.Source, orders.Adapter, len(orders.Records), res.Count, res.Skipped)
	return res, nil
}

// Receipts correlates delivery events with the order lines the buy-order
// loop created. Responses must be in creation order.
func (r *Runner) Receipts(in Inputs) (receipt.Result, error) {
	deliveries := normalize.ItemDeliveries(
		normalize.From("buy_order_output", in.BuyOrderOutput),
		normalize.From("simulation", in.Simulation),
	)
	res := receipt.Correlate(deliveries.Records, normalize.CreatedRefs(in.Responses))
	if err := r.publishReceipts(StageReceipts, res); err != nil {
		return res, err
	}
	r.report(StageReceipts, deliveries.Source, deliveries.Adapter, len(deliveries.Records), len(res.Bodies), res.Skipped)
	return res, nil
}

// ReceiptsFromRows builds receipt lines straight from persisted rows.
func (r *Runner) ReceiptsFromRows(in Inputs) (receipt.Result, error) {
	rows := normalize.BORows(normalize.From("rows", in.Rows))
	res := receipt.FromRows(rows.Records)
	if err := r.publishReceipts(StageReceiptsFromRows, res); err != nil {
		return res, err
	}
	r.report(StageReceiptsFromRows, rows.Source, rows.Adapter, len(rows.Records), len(res.Bodies), res.Skipped)
	return res, nil
}

func (r *Runner) publishReceipts(stage string, res receipt.Result) error {
	for i, b := range res.Bodies {
		if err := r.publish(stage, i, "POST", r.path(PathReceiptLines), b); err != nil {
			return err
		}
	}
	return nil
}

// Stocks renders the stock snapshot insert. Nothing is published; the
// statement is executed outside this system.
func (r *Runner) Stocks(in Inputs) stocksql.Snapshot {
	rows := normalize.Stocks(normalize.From("simulation", in.Simulation))
	b := r.StockSQL
	if b == nil {
		b = stocksql.NewBuilder(r.log())
	}
	snap := b.Build(rows.Records, rows.Raw)
	r.report(StageStocks, rows.Source, rows.Adapter, len(rows.Records), len(snap.Stocks), nil)
	return snap
}

// StoredResponses loads the create responses of a run from the response
// store as a positional list; gaps stay nil.
func StoredResponses(st state.Store, runID string) ([]any, error) {
	raws, err := state.Responses(st, runID)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(raws))
	for i, raw := range raws {
		if len(raw) == 0 {
			continue
		}
		v, err := normalize.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decode response %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
