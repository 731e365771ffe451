package simulator

import (
	"math"

	"github.com/ajitpratap0/paramsearch/internal/objective"
	"github.com/ajitpratap0/paramsearch/pkg/selector"
)

const (
	barsPerYear  = 252
	riskFreeRate = 3.0 // percent
)

// ============================================================================
// PERFORMANCE REPORT
// ============================================================================

// Report holds the performance of one backtest run
type Report struct {
	// Returns
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGR           float64 `json:"cagr"`

	// Risk
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Volatility     float64 `json:"volatility"` // annualized, percent
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	CalmarRatio    float64 `json:"calmar_ratio"`

	// Trades
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"` // percent
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	Expectancy    float64 `json:"expectancy"`

	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
}

// NewReport computes a report from a per-bar equity curve and the realized
// profit of every closed trade.
func NewReport(initialCapital float64, equity, tradePL []float64) *Report {
	r := &Report{InitialCapital: initialCapital, FinalEquity: initialCapital}
	if len(equity) > 0 {
		r.FinalEquity = equity[len(equity)-1]
	}

	r.TotalReturn = r.FinalEquity - r.InitialCapital
	if r.InitialCapital > 0 {
		r.TotalReturnPct = r.TotalReturn / r.InitialCapital * 100.0
	}

	if years := float64(len(equity)) / barsPerYear; years > 0 && r.InitialCapital > 0 {
		if r.FinalEquity > 0 {
			r.CAGR = (math.Pow(r.FinalEquity/r.InitialCapital, 1.0/years) - 1.0) * 100.0
		} else {
			r.CAGR = -100.0
		}
	}

	r.tradeStatistics(tradePL)
	r.riskStatistics(equity)

	if r.Volatility > 0 {
		r.SharpeRatio = (r.CAGR - riskFreeRate) / r.Volatility
	}
	if r.MaxDrawdownPct > 0 {
		r.CalmarRatio = r.CAGR / r.MaxDrawdownPct
	}

	return r
}

func (r *Report) tradeStatistics(tradePL []float64) {
	var totalWin, totalLoss float64
	for _, pl := range tradePL {
		if pl > 0 {
			totalWin += pl
			r.WinningTrades++
		} else {
			totalLoss += pl
			r.LosingTrades++
		}
	}
	r.TotalTrades = len(tradePL)
	if r.TotalTrades == 0 {
		return
	}

	r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100.0
	if r.WinningTrades > 0 {
		r.AverageWin = totalWin / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = totalLoss / float64(r.LosingTrades)
	}
	if totalLoss != 0 {
		r.ProfitFactor = totalWin / math.Abs(totalLoss)
	}

	winProb := float64(r.WinningTrades) / float64(r.TotalTrades)
	lossProb := float64(r.LosingTrades) / float64(r.TotalTrades)
	r.Expectancy = winProb*r.AverageWin + lossProb*r.AverageLoss
}

// riskStatistics derives drawdown, volatility and downside deviation from
// bar-to-bar returns.
func (r *Report) riskStatistics(equity []float64) {
	if len(equity) < 2 {
		return
	}

	peak := equity[0]
	returns := make([]float64, 0, len(equity)-1)
	for i, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (peak - e) / peak * 100.0; dd > r.MaxDrawdownPct {
				r.MaxDrawdownPct = dd
			}
		}
		if i > 0 && equity[i-1] != 0 {
			returns = append(returns, (e-equity[i-1])/equity[i-1])
		}
	}
	if len(returns) == 0 {
		return
	}

	var sum float64
	for _, ret := range returns {
		sum += ret
	}
	mean := sum / float64(len(returns))

	var sumSquaredDiff, sumSquaredNeg float64
	var negatives int
	for _, ret := range returns {
		diff := ret - mean
		sumSquaredDiff += diff * diff
		if ret < 0 {
			sumSquaredNeg += ret * ret
			negatives++
		}
	}

	annualize := math.Sqrt(barsPerYear) * 100.0
	r.Volatility = math.Sqrt(sumSquaredDiff/float64(len(returns))) * annualize

	if negatives > 0 {
		downside := math.Sqrt(sumSquaredNeg/float64(negatives)) * annualize
		if downside > 0 {
			r.SortinoRatio = (r.CAGR - riskFreeRate) / downside
		}
	}
}

// Metrics flattens the report into the metric bag a selector ranks
func (r *Report) Metrics() selector.Metrics {
	return selector.Metrics{
		objective.MetricTotalReturnPct: r.TotalReturnPct,
		objective.MetricCAGR:           r.CAGR,
		objective.MetricMaxDrawdownPct: r.MaxDrawdownPct,
		objective.MetricVolatility:     r.Volatility,
		objective.MetricSharpeRatio:    r.SharpeRatio,
		objective.MetricSortinoRatio:   r.SortinoRatio,
		objective.MetricCalmarRatio:    r.CalmarRatio,
		objective.MetricTotalTrades:    float64(r.TotalTrades),
		objective.MetricWinRate:        r.WinRate,
		objective.MetricProfitFactor:   r.ProfitFactor,
		objective.MetricExpectancy:     r.Expectancy,
	}
}
