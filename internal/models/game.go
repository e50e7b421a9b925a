package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the platform a game was fetched from.
type Source string

const (
	SourceChessCom Source = "chesscom"
	SourceLichess  Source = "lichess"
)

// Color is the side the subject player held in a game.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Result is the game outcome from the subject player's perspective.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// TimeClass buckets a game's time control.
type TimeClass string

const (
	TimeClassBullet    TimeClass = "bullet"
	TimeClassBlitz     TimeClass = "blitz"
	TimeClassRapid     TimeClass = "rapid"
	TimeClassClassical TimeClass = "classical"
)

// Termination is the reason a game ended.
type Termination string

const (
	TerminationCheckmate    Termination = "checkmate"
	TerminationResignation  Termination = "resignation"
	TerminationTimeout      Termination = "timeout"
	TerminationStalemate    Termination = "stalemate"
	TerminationInsufficient Termination = "insufficient_material"
	TerminationRepetition   Termination = "repetition"
	TerminationAgreement    Termination = "agreement"
	TerminationAbandoned    Termination = "abandoned"
	TerminationOther        Termination = "other"
)

// OpeningUnknown is the sentinel opening name used when neither the
// platform payload nor local detection yields an opening.
const OpeningUnknown = "Unknown"

// ClockData carries the time-control configuration and the per-move
// time usage recovered from clock annotations, when available.
type ClockData struct {
	InitialSeconds   int       `json:"initial_seconds"`
	IncrementSeconds int       `json:"increment_seconds"`
	FinalSeconds     *float64  `json:"final_seconds,omitempty"`
	MoveTimes        []float64 `json:"move_times,omitempty"`
	AvgMoveTime      float64   `json:"avg_move_time"`
}

// AnalysisData aggregates move-quality analysis onto a game. It is the
// only part of a stored game the analysis pipeline ever overwrites.
// Counts and ACPL are pointers because platforms may supply a partial
// record (Chess.com reports accuracy alone); a nil field means the
// source did not measure it, which the merge policy must keep distinct
// from a measured zero.
type AnalysisData struct {
	Accuracy     float64   `json:"accuracy"`
	Blunders     *int      `json:"blunders,omitempty"`
	Mistakes     *int      `json:"mistakes,omitempty"`
	Inaccuracies *int      `json:"inaccuracies,omitempty"`
	ACPL         *float64  `json:"acpl,omitempty"`
	Estimated    bool      `json:"estimated"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// Game is the canonical cross-platform game record. GameUID is stable
// across repeated fetches of the same platform game so re-sync stays
// idempotent.
type Game struct {
	ID             int64         `json:"id"`
	ProfileID      int64         `json:"profile_id"`
	GameUID        string        `json:"game_uid"`
	Source         Source        `json:"source"`
	PGN            string        `json:"pgn"`
	TimeClass      TimeClass     `json:"time_class"`
	Result         Result        `json:"result"`
	PlayedAs       Color         `json:"played_as"`
	Opponent       string        `json:"opponent"`
	PlayerRating   int           `json:"player_rating"`
	OpponentRating int           `json:"opponent_rating"`
	RatingDelta    *int          `json:"rating_delta,omitempty"`
	Rated          bool          `json:"rated"`
	PlayedAt       time.Time     `json:"played_at"`
	ECOCode        string        `json:"eco_code"`
	OpeningName    string        `json:"opening_name"`
	Termination    Termination   `json:"termination"`
	PlyCount       int           `json:"ply_count"`
	URL            string        `json:"url"`
	Clock          *ClockData    `json:"clock,omitempty"`
	Analysis       *AnalysisData `json:"analysis,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// MakeGameUID builds the deterministic game identity. Platform-native
// IDs are preferred; the fallback combines fields that never change for
// a finished game.
func MakeGameUID(source Source, nativeID string, playedAt time.Time, opponent string) string {
	if nativeID != "" {
		return fmt.Sprintf("%s:%s", source, nativeID)
	}
	return fmt.Sprintf("%s:%d:%s", source, playedAt.Unix(), strings.ToLower(opponent))
}

// Profile is the user configuration record: zero, one, or two platform
// usernames plus the last successful sync point.
type Profile struct {
	ID               int64      `json:"id"`
	ChessComUsername string     `json:"chesscom_username,omitempty"`
	LichessUsername  string     `json:"lichess_username,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
}

// Sources returns the platforms this profile has configured, in the
// fixed processing order used by the sync orchestrator.
func (p *Profile) Sources() []Source {
	var out []Source
	if p.ChessComUsername != "" {
		out = append(out, SourceChessCom)
	}
	if p.LichessUsername != "" {
		out = append(out, SourceLichess)
	}
	return out
}

// Username returns the username configured for the given source.
func (p *Profile) Username(source Source) string {
	switch source {
	case SourceChessCom:
		return p.ChessComUsername
	case SourceLichess:
		return p.LichessUsername
	}
	return ""
}

// GameFilter narrows game listings.
type GameFilter struct {
	ProfileID int64
	Source    Source
	TimeClass TimeClass
	Result    Result
	Opponent  string
	Limit     int
	Offset    int
}
