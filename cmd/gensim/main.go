package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bosim/internal/logging"
	"bosim/internal/model"
)

// simulationResult mirrors what the simulation engine hands to the pipeline.
type simulationResult struct {
	Stocks         []model.StockRow     `json:"stocks"`
	BuyOrders      []model.BuyOrder     `json:"buy_orders"`
	ItemDeliveries []model.ItemDelivery `json:"item_deliveries"`
}

func main() {
	var (
		products   int
		days       int
		webshopID  int64
		seed       int64
		outputFile string
	)
	flag.IntVar(&products, "products", 5, "number of products")
	flag.IntVar(&days, "days", 30, "simulated days ending today")
	flag.Int64Var(&webshopID, "webshop-id", 1380, "webshop id")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	flag.StringVar(&outputFile, "output", "simulation.json", "output file")
	flag.Parse()

	logger, err := logging.New("dev", "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	res := generate(rand.New(rand.NewSource(seed)), products, days, webshopID, time.Now().UTC())
	if err := write(outputFile, res); err != nil {
		logger.Fatal("generation failed", zap.Error(err))
	}
	logger.Info("simulation written",
		zap.String("path", outputFile),
		zap.Int64("seed", seed),
		zap.Int("stocks", len(res.Stocks)),
		zap.Int("buy_orders", len(res.BuyOrders)),
		zap.Int("item_deliveries", len(res.ItemDeliveries)))
}

// generate runs a crude reorder-point simulation: stock drains by a random
// daily demand, and falling under the reorder point places a buy order that
// arrives after a supplier lead time.
func generate(rng *rand.Rand, products, days int, webshopID int64, today time.Time) simulationResult {
	res := simulationResult{
		Stocks:         []model.StockRow{},
		BuyOrders:      []model.BuyOrder{},
		ItemDeliveries: []model.ItemDelivery{},
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days+1)
	webshopUUID := uuid.NewString()

	type incoming struct {
		index int
		qty   float64
	}
	for p := 0; p < products; p++ {
		productID := int64(1000 + p)
		productUUID := uuid.NewString()
		supplierID := int64(1 + rng.Intn(3))
		leadDays := 2 + rng.Intn(6)
		price := float64(100+rng.Intn(2000)) / 100
		onHand := float64(20 + rng.Intn(30))
		reorderPoint := 10.0
		arrivals := map[int][]incoming{}
		pending := false

		for d := 0; d < days; d++ {
			day := start.AddDate(0, 0, d)
			for _, in := range arrivals[d] {
				onHand += in.qty
				pending = false
				res.ItemDeliveries = append(res.ItemDeliveries, model.ItemDelivery{
					OrderIndex:  in.index,
					Quantity:    in.qty,
					DeliveredAt: day.Format("2006-01-02"),
				})
			}
			onHand -= float64(rng.Intn(5))
			if onHand < 0 {
				onHand = 0
			}
			if onHand < reorderPoint && !pending {
				qty := float64(10 + rng.Intn(20))
				expected := day.AddDate(0, 0, leadDays)
				res.BuyOrders = append(res.BuyOrders, model.BuyOrder{
					ProductID:            productID,
					SupplierID:           supplierID,
					Quantity:             qty,
					UnitPrice:            price,
					Placed:               day.Format("2006-01-02 15:04:05"),
					ExpectedDeliveryDate: expected.Format("2006-01-02 15:04:05"),
				})
				// some deliveries slip by a day or two
				arrive := d + leadDays + rng.Intn(3)
				arrivals[arrive] = append(arrivals[arrive], incoming{index: len(res.BuyOrders) - 1, qty: qty})
				pending = true
			}
			res.Stocks = append(res.Stocks, model.StockRow{
				ProductID:   productID,
				ProductUUID: productUUID,
				WebshopID:   webshopID,
				WebshopUUID: webshopUUID,
				OnHand:      onHand,
				Date:        day.Format("2006-01-02"),
			})
		}
	}
	return res
}

func write(path string, res simulationResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&res); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
