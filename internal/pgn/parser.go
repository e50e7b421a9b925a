package pgn

import (
	"regexp"
	"strconv"
	"strings"
)

var headerRe = regexp.MustCompile(`\[(\w+)\s+"([^"]*)"\]`)

// ParseHeaders extracts PGN header tags into a map
func ParseHeaders(pgn string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(pgn, "\n") {
		if !strings.HasPrefix(line, "[") {
			continue
		}
		m := headerRe.FindStringSubmatch(line)
		if len(m) == 3 {
			out[m[1]] = m[2]
		}
	}
	return out
}

var gameIDRe = regexp.MustCompile(`.*/game/[^/]+/([0-9]+)`)

// ExtractGameID extracts the game ID from a chess.com game URL
func ExtractGameID(url string) string {
	m := gameIDRe.FindStringSubmatch(url)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

// ParseTimeControl splits a PGN/chess.com time control like "300+2",
// "600" or "1/86400" into base seconds and increment. Daily controls
// ("1/86400") report the per-move allotment as the base.
func ParseTimeControl(tc string) (initial, increment int) {
	if tc == "" || tc == "-" {
		return 0, 0
	}
	if idx := strings.Index(tc, "/"); idx >= 0 {
		tc = tc[idx+1:]
	}
	parts := strings.SplitN(tc, "+", 2)
	initial, _ = strconv.Atoi(parts[0])
	if len(parts) == 2 {
		increment, _ = strconv.Atoi(parts[1])
	}
	return initial, increment
}

var clkRe = regexp.MustCompile(`\[%clk\s+(\d+):(\d{1,2}):(\d{1,2}(?:\.\d+)?)\]`)

// ParseClockTimes returns the clock reading after every ply, in
// seconds, in move order. Chess.com embeds these as {[%clk H:MM:SS.t]}
// comments in the movetext.
func ParseClockTimes(pgn string) []float64 {
	matches := clkRe.FindAllStringSubmatch(pgn, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec, _ := strconv.ParseFloat(m[3], 64)
		out = append(out, float64(h)*3600+float64(min)*60+sec)
	}
	return out
}

// MoveTimes derives per-move thinking times for one side from the
// alternating clock readings. startIdx is 0 for White, 1 for Black.
// Each move's time is the drop between that side's consecutive clock
// readings plus the increment gained.
func MoveTimes(clocks []float64, startIdx, initialSeconds, incrementSeconds int) []float64 {
	if len(clocks) == 0 || startIdx >= len(clocks) {
		return nil
	}
	var out []float64
	prev := float64(initialSeconds)
	for i := startIdx; i < len(clocks); i += 2 {
		spent := prev - clocks[i] + float64(incrementSeconds)
		if spent < 0 {
			spent = 0
		}
		out = append(out, spent)
		prev = clocks[i]
	}
	return out
}

var (
	commentRe  = regexp.MustCompile(`\{[^}]*\}`)
	moveNumRe  = regexp.MustCompile(`^\d+\.+$`)
	resultToks = map[string]bool{"1-0": true, "0-1": true, "1/2-1/2": true, "*": true}
)

// CountPlies counts half-moves in a PGN's movetext without a full
// legality parse. Headers, comments, variations, NAGs, move numbers
// and the result token are skipped.
func CountPlies(pgn string) int {
	var movetext []string
	for _, line := range strings.Split(pgn, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		movetext = append(movetext, line)
	}
	text := commentRe.ReplaceAllString(strings.Join(movetext, " "), " ")

	// Drop variations.
	var sb strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				sb.WriteRune(r)
			}
		}
	}

	count := 0
	for _, tok := range strings.Fields(sb.String()) {
		if resultToks[tok] || moveNumRe.MatchString(tok) || strings.HasPrefix(tok, "$") {
			continue
		}
		// Tokens like "12...Nf6" keep the move glued to the number.
		if idx := strings.LastIndex(tok, "."); idx >= 0 && idx < len(tok)-1 {
			tok = tok[idx+1:]
		} else if idx == len(tok)-1 {
			continue
		}
		if tok == "" {
			continue
		}
		count++
	}
	return count
}
