package chesscom

import (
	"strconv"
	"strings"
	"time"

	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/pgn"
)

// Result vocabulary translation. Chess.com reports a per-player result
// code; everything that is not a win or an explicit draw code is a loss.
var resultMap = map[string]models.Result{
	"win":                 models.ResultWin,
	"stalemate":           models.ResultDraw,
	"agreed":              models.ResultDraw,
	"repetition":          models.ResultDraw,
	"timevsinsufficient":  models.ResultDraw,
	"insufficient":        models.ResultDraw,
	"fiftymove":           models.ResultDraw,
	"draw":                models.ResultDraw,
	"checkmated":          models.ResultLoss,
	"resigned":            models.ResultLoss,
	"timeout":             models.ResultLoss,
	"abandoned":           models.ResultLoss,
	"kingofthehill":       models.ResultLoss,
	"threecheck":          models.ResultLoss,
	"bughousepartnerlose": models.ResultLoss,
}

// Termination vocabulary translation, derived from the non-winning
// side's result code.
var terminationMap = map[string]models.Termination{
	"checkmated":         models.TerminationCheckmate,
	"resigned":           models.TerminationResignation,
	"timeout":            models.TerminationTimeout,
	"stalemate":          models.TerminationStalemate,
	"insufficient":       models.TerminationInsufficient,
	"timevsinsufficient": models.TerminationInsufficient,
	"repetition":         models.TerminationRepetition,
	"fiftymove":          models.TerminationRepetition,
	"agreed":             models.TerminationAgreement,
	"draw":               models.TerminationAgreement,
	"abandoned":          models.TerminationAbandoned,
}

var timeClassMap = map[string]models.TimeClass{
	"bullet": models.TimeClassBullet,
	"blitz":  models.TimeClassBlitz,
	"rapid":  models.TimeClassRapid,
	"daily":  models.TimeClassClassical,
}

// NormalizeResult converts a chess.com result code to the canonical value.
func NormalizeResult(code string) models.Result {
	if r, ok := resultMap[strings.ToLower(code)]; ok {
		return r
	}
	return models.ResultLoss
}

// NormalizeTimeClass converts a chess.com time_class to the canonical value.
func NormalizeTimeClass(tc string) models.TimeClass {
	if c, ok := timeClassMap[strings.ToLower(tc)]; ok {
		return c
	}
	return models.TimeClassClassical
}

// DeriveResult determines which color the user played, their opponent,
// and the result from the user's perspective.
func DeriveResult(username string, mg MonthlyGame) (playedAs models.Color, opponent Player, result models.Result) {
	if strings.EqualFold(mg.White.Username, username) {
		return models.White, mg.Black, NormalizeResult(mg.White.Result)
	}
	return models.Black, mg.White, NormalizeResult(mg.Black.Result)
}

// DeriveTermination maps the losing side's result code onto the
// termination vocabulary. For draws both codes agree on the reason.
func DeriveTermination(mg MonthlyGame) models.Termination {
	code := strings.ToLower(mg.White.Result)
	if code == "win" {
		code = strings.ToLower(mg.Black.Result)
	}
	if t, ok := terminationMap[code]; ok {
		return t
	}
	return models.TerminationOther
}

// openingNameFromECOUrl turns a chess.com ECOUrl slug like
// ".../openings/Sicilian-Defense-Open-2...Nc6" into a readable name.
func openingNameFromECOUrl(url string) string {
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return ""
	}
	return strings.ReplaceAll(url[idx+1:], "-", " ")
}

func (c *Client) convertGame(username string, mg MonthlyGame) models.Game {
	playedAs, opponent, result := DeriveResult(username, mg)
	headers := pgn.ParseHeaders(mg.PGN)
	playedAt := time.Unix(mg.EndTime, 0).UTC()

	ecoCode := headers["ECO"]
	openingName := headers["Opening"]
	if openingName == "" {
		openingName = openingNameFromECOUrl(headers["ECOUrl"])
	}
	if openingName == "" {
		openingName = models.OpeningUnknown
	}

	playerRating := mg.White.Rating
	if playedAs == models.Black {
		playerRating = mg.Black.Rating
	}

	// Ratings in the PGN headers are post-game and occasionally more
	// precise than the payload's; prefer them when parseable.
	whiteElo, _ := strconv.Atoi(headers["WhiteElo"])
	blackElo, _ := strconv.Atoi(headers["BlackElo"])
	opponentRating := opponent.Rating
	if playedAs == models.White {
		if whiteElo != 0 {
			playerRating = whiteElo
		}
		if blackElo != 0 {
			opponentRating = blackElo
		}
	} else {
		if blackElo != 0 {
			playerRating = blackElo
		}
		if whiteElo != 0 {
			opponentRating = whiteElo
		}
	}

	g := models.Game{
		ProfileID:      0, // assigned by the sync orchestrator
		GameUID:        models.MakeGameUID(models.SourceChessCom, pgn.ExtractGameID(mg.URL), playedAt, opponent.Username),
		Source:         models.SourceChessCom,
		PGN:            mg.PGN,
		TimeClass:      NormalizeTimeClass(mg.TimeClass),
		Result:         result,
		PlayedAs:       playedAs,
		Opponent:       opponent.Username,
		PlayerRating:   playerRating,
		OpponentRating: opponentRating,
		Rated:          mg.Rated,
		PlayedAt:       playedAt,
		ECOCode:        ecoCode,
		OpeningName:    openingName,
		Termination:    DeriveTermination(mg),
		PlyCount:       pgn.CountPlies(mg.PGN),
		URL:            mg.URL,
		Clock:          buildClockData(mg, playedAs),
	}

	if mg.Accuracies != nil {
		acc := mg.Accuracies.White
		if playedAs == models.Black {
			acc = mg.Accuracies.Black
		}
		if acc > 0 {
			g.Analysis = &models.AnalysisData{Accuracy: acc, AnalyzedAt: playedAt}
		}
	}
	return g
}

func buildClockData(mg MonthlyGame, playedAs models.Color) *models.ClockData {
	initial, increment := pgn.ParseTimeControl(mg.TimeControl)
	clocks := pgn.ParseClockTimes(mg.PGN)
	if initial == 0 && len(clocks) == 0 {
		return nil
	}

	cd := &models.ClockData{InitialSeconds: initial, IncrementSeconds: increment}
	if len(clocks) == 0 {
		return cd
	}

	startIdx := 0
	if playedAs == models.Black {
		startIdx = 1
	}
	cd.MoveTimes = pgn.MoveTimes(clocks, startIdx, initial, increment)
	if n := len(cd.MoveTimes); n > 0 {
		var sum float64
		for _, t := range cd.MoveTimes {
			sum += t
		}
		cd.AvgMoveTime = sum / float64(n)
	}
	// Last clock reading for the subject's side is their remaining time.
	for i := len(clocks) - 1; i >= 0; i-- {
		if i%2 == startIdx {
			final := clocks[i]
			cd.FinalSeconds = &final
			break
		}
	}
	return cd
}

// filterArchivesSince drops archive pages for months entirely before
// the sync window. Archive URLs end in .../games/YYYY/MM.
func filterArchivesSince(archives []string, since *time.Time) []string {
	if since == nil {
		return archives
	}
	cutoff := time.Date(since.Year(), since.Month(), 1, 0, 0, 0, 0, time.UTC)

	var filtered []string
	for _, url := range archives {
		parts := strings.Split(strings.TrimSuffix(url, "/"), "/")
		if len(parts) < 2 {
			continue
		}
		year, err1 := strconv.Atoi(parts[len(parts)-2])
		month, err2 := strconv.Atoi(parts[len(parts)-1])
		if err1 != nil || err2 != nil {
			continue
		}
		if time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Before(cutoff) {
			continue
		}
		filtered = append(filtered, url)
	}
	return filtered
}
