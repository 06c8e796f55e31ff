package analytics

import (
	"math"
	"sort"
	"time"

	"tradeEngine/internal/domain"
)

// tradingDaysPerYear annualizes the per-trade Sharpe ratio.
const tradingDaysPerYear = 252

// PerformanceMetrics summarizes a sequence of settled trades.
type PerformanceMetrics struct {
	TotalTrades   int
	WinningTrades int     // pnl > 0
	LosingTrades  int     // everything else
	WinRate       float64 // Percent
	TotalPnL      float64
	FinalBalance  float64
	ReturnPercent float64
	MaxDrawdown   float64 // Percent of the running peak of the equity curve
	SharpeRatio   float64
	AverageWin    float64 // Mean of pnl > 0
	AverageLoss   float64 // Mean of pnl < 0

	ProfitFactor         float64 // Gross profit / gross loss
	Expectancy           float64 // Mean pnl per trade
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	MonthlyReturns       map[string]float64 // pnl by entry month, "2006-01"
}

// AnalyzePerformance calculates metrics for trades in the order given.
// The equity curve is the balance after each trade, starting from
// initialBalance; it has one point per trade.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
	}
	if len(trades) == 0 {
		return metrics
	}

	equity := make([]float64, 0, len(trades))
	balance := initialBalance
	var grossProfit, grossLoss, winSum, lossSum float64
	var lossCount, consecutiveWins, consecutiveLosses int

	for _, trade := range trades {
		metrics.TotalTrades++
		metrics.TotalPnL += trade.PnL
		balance += trade.PnL
		equity = append(equity, balance)
		metrics.MonthlyReturns[trade.EntryTime.UTC().Format("2006-01")] += trade.PnL

		if trade.PnL > 0 {
			metrics.WinningTrades++
			winSum += trade.PnL
			grossProfit += trade.PnL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			if trade.PnL < 0 {
				lossCount++
				lossSum += trade.PnL
				grossLoss -= trade.PnL
			}
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}
	}

	metrics.LosingTrades = metrics.TotalTrades - metrics.WinningTrades
	metrics.FinalBalance = balance
	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades) * 100
	if initialBalance != 0 {
		metrics.ReturnPercent = (balance - initialBalance) / initialBalance * 100
	}
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = winSum / float64(metrics.WinningTrades)
	}
	if lossCount > 0 {
		metrics.AverageLoss = lossSum / float64(lossCount)
	}
	if grossLoss > 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
	}
	metrics.Expectancy = metrics.TotalPnL / float64(metrics.TotalTrades)
	metrics.MaxDrawdown = MaxDrawdownPercent(equity)
	metrics.SharpeRatio = SharpeRatio(equity)

	return metrics
}

// MaxDrawdownPercent returns the largest fall from a running peak of equity,
// in percent of that peak.
func MaxDrawdownPercent(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD * 100
}

// Returns converts an equity curve into simple per-step returns.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}

// SharpeRatio is mean/stdev of the equity returns annualized by √252,
// using the population standard deviation. Fewer than two equity points or
// zero deviation yield 0.
func SharpeRatio(equity []float64) float64 {
	returns := Returns(equity)
	if len(returns) == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}
	return mean / stdDev * math.Sqrt(tradingDaysPerYear)
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{Month: date, Return: profit})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}
