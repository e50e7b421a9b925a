package models

import "time"

// Evaluation origins.
const (
	EvalSourceCloud = "cloud"
	EvalSourceLocal = "local"
)

// Evaluation is a single position score. CP is always centipawns from
// White's perspective; mate scores are additionally folded onto the
// centipawn scale (±(10000 - 10·distance)) so downstream loss math
// needs no special cases.
type Evaluation struct {
	CP       float64 `json:"cp"`
	Mate     *int    `json:"mate,omitempty"`
	BestMove string  `json:"best_move"`
	Depth    int     `json:"depth"`
	Source   string  `json:"source"`
}

// MoveAnalysis is the per-ply analysis record. CPLoss is zero for
// plies that are not the subject player's moves.
type MoveAnalysis struct {
	Ply            int        `json:"ply"`
	FENBefore      string     `json:"fen_before"`
	Move           string     `json:"move"`
	EvalBefore     Evaluation `json:"eval_before"`
	EvalAfter      Evaluation `json:"eval_after"`
	CPLoss         float64    `json:"cp_loss"`
	BestMove       string     `json:"best_move"`
	Classification string     `json:"classification"`
}

// GameAnalysis is the aggregate result of analyzing one game.
// Estimated marks results produced by the sampled quick mode, where
// counts are extrapolations rather than exact tallies.
type GameAnalysis struct {
	GameID       int64          `json:"game_id"`
	Accuracy     float64        `json:"accuracy"`
	Blunders     int            `json:"blunders"`
	Mistakes     int            `json:"mistakes"`
	Inaccuracies int            `json:"inaccuracies"`
	ACPL         float64        `json:"acpl"`
	Estimated    bool           `json:"estimated"`
	Moves        []MoveAnalysis `json:"moves,omitempty"`
	AnalyzedAt   time.Time      `json:"analyzed_at"`
}

// Data converts the aggregate into the storable AnalysisData
// sub-object. A local analysis always measures every field, so all of
// them are present.
func (ga *GameAnalysis) Data() AnalysisData {
	blunders, mistakes, inaccuracies, acpl := ga.Blunders, ga.Mistakes, ga.Inaccuracies, ga.ACPL
	return AnalysisData{
		Accuracy:     ga.Accuracy,
		Blunders:     &blunders,
		Mistakes:     &mistakes,
		Inaccuracies: &inaccuracies,
		ACPL:         &acpl,
		Estimated:    ga.Estimated,
		AnalyzedAt:   ga.AnalyzedAt,
	}
}
