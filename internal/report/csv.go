package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"fx-intel-bot/internal/tradelog"
)

type aggRow struct {
	Instrument  string
	BuyUnits    int
	BuyValue    float64
	SellUnits   int
	SellValue   float64
	RealizedPnL float64
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func csvPath(t time.Time) string {
	return filepath.Join(logDir(), "reports", t.UTC().Format("2006-01-02")+".csv")
}

// ExportDayCSV aggregates the day's journaled trades per instrument and
// writes them to logs/reports/<date>.csv. The realized P&L column nets
// matched buy and sell units against their average prices, so it only
// covers round trips closed by an opposite signal. Days with no trades
// produce no file and an empty path.
func ExportDayCSV(day time.Time) (string, error) {
	entries, err := tradelog.ReadDay(day)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	aggs := map[string]*aggRow{}
	for _, e := range entries {
		row := aggs[e.Instrument]
		if row == nil {
			row = &aggRow{Instrument: e.Instrument}
			aggs[e.Instrument] = row
		}
		switch e.Side {
		case "BUY":
			row.BuyUnits += e.Units
			row.BuyValue += float64(e.Units) * e.Price
		case "SELL":
			row.SellUnits += e.Units
			row.SellValue += float64(e.Units) * e.Price
		}
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := csvPath(day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	headers := []string{"instrument", "buy_units", "buy_avg", "sell_units", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var totalBuy, totalSell, totalPnL float64
	for _, k := range keys {
		r := aggs[k]
		var buyAvg, sellAvg float64
		if r.BuyUnits > 0 {
			buyAvg = r.BuyValue / float64(r.BuyUnits)
		}
		if r.SellUnits > 0 {
			sellAvg = r.SellValue / float64(r.SellUnits)
		}
		matched := r.BuyUnits
		if r.SellUnits < matched {
			matched = r.SellUnits
		}
		r.RealizedPnL = float64(matched) * (sellAvg - buyAvg)
		rec := []string{
			r.Instrument,
			strconv.Itoa(r.BuyUnits),
			fmt.Sprintf("%.5f", buyAvg),
			strconv.Itoa(r.SellUnits),
			fmt.Sprintf("%.5f", sellAvg),
			fmt.Sprintf("%.2f", r.RealizedPnL),
			fmt.Sprintf("%.2f", r.BuyValue),
			fmt.Sprintf("%.2f", r.SellValue),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy += r.BuyValue
		totalSell += r.SellValue
		totalPnL += r.RealizedPnL
	}
	_ = w.Write([]string{"TOTAL", "", "", "", "", fmt.Sprintf("%.2f", totalPnL), fmt.Sprintf("%.2f", totalBuy), fmt.Sprintf("%.2f", totalSell)})

	return outPath, nil
}
