package lichess

import (
	"fmt"
	"strings"
	"time"

	"github.com/vytor/chessync/internal/models"
)

var timeClassMap = map[string]models.TimeClass{
	"ultrabullet":    models.TimeClassBullet,
	"bullet":         models.TimeClassBullet,
	"blitz":          models.TimeClassBlitz,
	"rapid":          models.TimeClassRapid,
	"classical":      models.TimeClassClassical,
	"correspondence": models.TimeClassClassical,
}

// Termination vocabulary translation. Lichess "timeout" means a player
// left the game, which is distinct from "outoftime" (flag fall).
var terminationMap = map[string]models.Termination{
	"mate":      models.TerminationCheckmate,
	"resign":    models.TerminationResignation,
	"outoftime": models.TerminationTimeout,
	"stalemate": models.TerminationStalemate,
	"draw":      models.TerminationAgreement,
	"timeout":   models.TerminationAbandoned,
	"aborted":   models.TerminationAbandoned,
	"nostart":   models.TerminationAbandoned,
}

// NormalizeTimeClass converts a lichess speed to the canonical value.
func NormalizeTimeClass(speed string) models.TimeClass {
	if c, ok := timeClassMap[strings.ToLower(speed)]; ok {
		return c
	}
	return models.TimeClassClassical
}

// NormalizeTermination converts a lichess status to the canonical value.
func NormalizeTermination(status string) models.Termination {
	if t, ok := terminationMap[strings.ToLower(status)]; ok {
		return t
	}
	return models.TerminationOther
}

func playerName(p exportPlayer) string {
	if p.User != nil {
		return p.User.Name
	}
	return ""
}

func convertGame(username string, eg exportGame) models.Game {
	playedAs := models.White
	subject, opponent := eg.Players.White, eg.Players.Black
	if !strings.EqualFold(playerName(eg.Players.White), username) {
		playedAs = models.Black
		subject, opponent = eg.Players.Black, eg.Players.White
	}

	result := models.ResultDraw
	switch eg.Winner {
	case "white":
		result = models.ResultWin
		if playedAs == models.Black {
			result = models.ResultLoss
		}
	case "black":
		result = models.ResultWin
		if playedAs == models.White {
			result = models.ResultLoss
		}
	}

	playedAt := time.UnixMilli(eg.LastMoveAt).UTC()
	if eg.LastMoveAt == 0 {
		playedAt = time.UnixMilli(eg.CreatedAt).UTC()
	}

	ecoCode, openingName := "", models.OpeningUnknown
	if eg.Opening != nil {
		ecoCode = eg.Opening.ECO
		if eg.Opening.Name != "" {
			openingName = eg.Opening.Name
		}
	}

	plyCount := 0
	if eg.Moves != "" {
		plyCount = len(strings.Fields(eg.Moves))
	}

	g := models.Game{
		ProfileID:      0, // assigned by the sync orchestrator
		GameUID:        models.MakeGameUID(models.SourceLichess, eg.ID, playedAt, playerName(opponent)),
		Source:         models.SourceLichess,
		PGN:            eg.PGN,
		TimeClass:      NormalizeTimeClass(eg.Speed),
		Result:         result,
		PlayedAs:       playedAs,
		Opponent:       playerName(opponent),
		PlayerRating:   subject.Rating,
		OpponentRating: opponent.Rating,
		RatingDelta:    subject.RatingDiff,
		Rated:          eg.Rated,
		PlayedAt:       playedAt,
		ECOCode:        ecoCode,
		OpeningName:    openingName,
		Termination:    NormalizeTermination(eg.Status),
		PlyCount:       plyCount,
		URL:            fmt.Sprintf("https://lichess.org/%s", eg.ID),
		Clock:          buildClockData(eg, playedAs),
	}

	// Server-side analysis comes for free when the game was analyzed on
	// the platform; it supersedes nothing until the merge policy says so.
	if subject.Analysis != nil {
		blunders := subject.Analysis.Blunder
		mistakes := subject.Analysis.Mistake
		inaccuracies := subject.Analysis.Inaccuracy
		acpl := subject.Analysis.ACPL
		g.Analysis = &models.AnalysisData{
			Accuracy:     subject.Analysis.Accuracy,
			Blunders:     &blunders,
			Mistakes:     &mistakes,
			Inaccuracies: &inaccuracies,
			ACPL:         &acpl,
			AnalyzedAt:   playedAt,
		}
	}
	return g
}

func buildClockData(eg exportGame, playedAs models.Color) *models.ClockData {
	if eg.Clock == nil && len(eg.Clocks) == 0 {
		return nil
	}
	cd := &models.ClockData{}
	if eg.Clock != nil {
		cd.InitialSeconds = eg.Clock.Initial
		cd.IncrementSeconds = eg.Clock.Increment
	}
	if len(eg.Clocks) == 0 {
		return cd
	}

	startIdx := 0
	if playedAs == models.Black {
		startIdx = 1
	}
	prev := float64(cd.InitialSeconds)
	for i := startIdx; i < len(eg.Clocks); i += 2 {
		clk := float64(eg.Clocks[i]) / 100 // centiseconds
		spent := prev - clk + float64(cd.IncrementSeconds)
		if spent < 0 {
			spent = 0
		}
		cd.MoveTimes = append(cd.MoveTimes, spent)
		prev = clk
		final := clk
		cd.FinalSeconds = &final
	}
	if n := len(cd.MoveTimes); n > 0 {
		var sum float64
		for _, t := range cd.MoveTimes {
			sum += t
		}
		cd.AvgMoveTime = sum / float64(n)
	}
	return cd
}
