package simulator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// LoadPrices reads closing prices from a CSV file. The file needs a header
// row; prices come from the "close" column, or the last column when there is
// none.
func LoadPrices(path string) ([]float64, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open price file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := len(header) - 1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "close") {
			col = i
			break
		}
	}

	var prices []float64
	lineNum := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record at line %d: %w", lineNum, err)
		}
		lineNum++

		if col >= len(record) {
			return nil, fmt.Errorf("line %d: missing close column", lineNum)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid close price: %w", lineNum, err)
		}
		if price <= 0 {
			return nil, fmt.Errorf("line %d: close price must be positive, got %f", lineNum, price)
		}
		prices = append(prices, price)
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("price file %s has no rows", path)
	}
	return prices, nil
}

// SyntheticPrices generates a seeded random walk with slow alternating
// trends, so trend-following parameters have something to find.
func SyntheticPrices(bars int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- synthetic market data, reproducibility matters more than unpredictability

	prices := make([]float64, bars)
	price := 100.0
	for i := range prices {
		drift := 0.0015 * math.Sin(2*math.Pi*float64(i)/180.0)
		shock := rng.NormFloat64() * 0.012
		price *= math.Exp(drift + shock)
		prices[i] = price
	}
	return prices
}
