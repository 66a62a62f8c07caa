// Package scoring computes tradeability scores for prediction markets. Every
// function here is pure: callers pass the clock and the news pool explicitly.
package scoring

import "math"

const (
	volumeSaturationUSD    = 100000.0
	liquiditySaturationUSD = 50000.0

	maxVolumeScore        = 30.0
	maxLiquidityScore     = 20.0
	maxPriceMovementScore = 15.0
	maxNewsScore          = 25.0
	maxProbScore          = 10.0
)

// ScoreVolume maps traded volume to [0,30], saturating at 100k USD.
func ScoreVolume(volumeUSD float64) float64 {
	if volumeUSD <= 0 || math.IsNaN(volumeUSD) {
		return 0
	}
	return math.Min(volumeUSD/volumeSaturationUSD, 1) * maxVolumeScore
}

// ScoreLiquidity maps book liquidity to [0,20], saturating at 50k USD.
func ScoreLiquidity(liquidityUSD float64) float64 {
	if liquidityUSD <= 0 || math.IsNaN(liquidityUSD) {
		return 0
	}
	return math.Min(liquidityUSD/liquiditySaturationUSD, 1) * maxLiquidityScore
}

// ScorePriceMovement maps the absolute 24h probability change to [0,15].
func ScorePriceMovement(change24h float64) float64 {
	if math.IsNaN(change24h) {
		return 0
	}
	return math.Min(math.Abs(change24h)*10, 1) * maxPriceMovementScore
}

// ScoreProbability peaks at 10 for a 50% market and falls to 0 at either
// extreme.
func ScoreProbability(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, (1-math.Abs(p-0.5)*2)*maxProbScore)
}
