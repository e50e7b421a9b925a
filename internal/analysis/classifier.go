package analysis

import (
	"math"

	"github.com/vytor/chessync/internal/models"
)

// Move classification tags.
const (
	ClassGood       = "good"
	ClassInaccuracy = "inaccuracy"
	ClassMistake    = "mistake"
	ClassBlunder    = "blunder"
)

// Centipawn-loss thresholds (exclusive).
const (
	inaccuracyThreshold = 50
	mistakeThreshold    = 100
	blunderThreshold    = 200
)

// CPLoss computes the centipawn loss of a move from the mover's
// perspective. Both evaluations are centipawns from White's
// perspective; Black's are negated before differencing. A move can
// never have negative loss — an eval that improves means the opponent's
// previous move was the bad one.
func CPLoss(evalBefore, evalAfter float64, mover models.Color) float64 {
	sign := 1.0
	if mover == models.Black {
		sign = -1.0
	}
	loss := sign*evalBefore - sign*evalAfter
	return math.Max(0, loss)
}

// ClassifyLoss buckets a non-negative centipawn loss.
func ClassifyLoss(loss float64) string {
	switch {
	case loss > blunderThreshold:
		return ClassBlunder
	case loss > mistakeThreshold:
		return ClassMistake
	case loss > inaccuracyThreshold:
		return ClassInaccuracy
	default:
		return ClassGood
	}
}

// AccuracyFromACPL derives a 0-100 accuracy score from average
// centipawn loss. Strictly decreasing in ACPL, 100 at zero loss.
func AccuracyFromACPL(acpl float64) float64 {
	if acpl <= 0 {
		return 100
	}
	accuracy := 103.1668*math.Exp(-0.04354*acpl) - 3.1669
	return math.Min(100, math.Max(0, accuracy))
}
