package lichess_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
	"github.com/vytor/chessync/internal/platform/lichess"
)

func exportLine(id string, lastMoveAt time.Time, winner string) string {
	return fmt.Sprintf(`{"id":"%s","rated":true,"speed":"blitz","status":"mate","winner":"%s",`+
		`"createdAt":%d,"lastMoveAt":%d,"moves":"e4 e5 Qh5 Nc6 Bc4 Nf6 Qxf7","pgn":"1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0",`+
		`"clocks":[30000,29800,29500,29000,28800,28500,28000],`+
		`"clock":{"initial":300,"increment":2},`+
		`"opening":{"eco":"C20","name":"Scholar's Mate"},`+
		`"players":{"white":{"user":{"name":"alice"},"rating":1500,"ratingDiff":8},`+
		`"black":{"user":{"name":"bob"},"rating":1480,"ratingDiff":-8,`+
		`"analysis":{"inaccuracy":1,"mistake":1,"blunder":1,"acpl":120,"accuracy":61.5}}}}`,
		id, winner, lastMoveAt.Add(-5*time.Minute).UnixMilli(), lastMoveAt.UnixMilli())
}

func ndjsonServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(strings.Join(lines, "\n")))
	}))
}

func TestFetchGames_ConvertsCanonicalShape(t *testing.T) {
	playedAt := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)
	srv := ndjsonServer(t, exportLine("abcd1234", playedAt, "white"))
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	games, err := c.FetchGames(context.Background(), "alice", platform.FetchOptions{FetchAll: true})
	require.NoError(t, err)
	require.Len(t, games, 1)

	g := games[0]
	assert.Equal(t, "lichess:abcd1234", g.GameUID)
	assert.Equal(t, models.SourceLichess, g.Source)
	assert.Equal(t, models.White, g.PlayedAs)
	assert.Equal(t, "bob", g.Opponent)
	assert.Equal(t, models.ResultWin, g.Result)
	assert.Equal(t, models.TerminationCheckmate, g.Termination)
	assert.Equal(t, models.TimeClassBlitz, g.TimeClass)
	assert.Equal(t, 1500, g.PlayerRating)
	assert.Equal(t, 1480, g.OpponentRating)
	require.NotNil(t, g.RatingDelta)
	assert.Equal(t, 8, *g.RatingDelta)
	assert.Equal(t, playedAt, g.PlayedAt)
	assert.Equal(t, "C20", g.ECOCode)
	assert.Equal(t, "Scholar's Mate", g.OpeningName)
	assert.Equal(t, 7, g.PlyCount)
	assert.Equal(t, "https://lichess.org/abcd1234", g.URL)

	require.NotNil(t, g.Clock)
	assert.Equal(t, 300, g.Clock.InitialSeconds)
	assert.Equal(t, 2, g.Clock.IncrementSeconds)
	assert.Len(t, g.Clock.MoveTimes, 4)

	// The subject (white) won; the opponent's server analysis must not
	// be attributed to them.
	assert.Nil(t, g.Analysis)
}

func TestFetchGames_SubjectAnalysisAttached(t *testing.T) {
	playedAt := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)
	srv := ndjsonServer(t, exportLine("abcd1234", playedAt, "white"))
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	games, err := c.FetchGames(context.Background(), "bob", platform.FetchOptions{FetchAll: true})
	require.NoError(t, err)
	require.Len(t, games, 1)

	g := games[0]
	assert.Equal(t, models.Black, g.PlayedAs)
	assert.Equal(t, models.ResultLoss, g.Result)
	require.NotNil(t, g.Analysis)
	assert.Equal(t, 61.5, g.Analysis.Accuracy)
	require.NotNil(t, g.Analysis.Blunders)
	assert.Equal(t, 1, *g.Analysis.Blunders)
	require.NotNil(t, g.Analysis.ACPL)
	assert.Equal(t, 120.0, *g.Analysis.ACPL)
}

func TestFetchGames_MalformedLinesSkipped(t *testing.T) {
	playedAt := time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)
	srv := ndjsonServer(t,
		"{not json",
		exportLine("goodgame", playedAt, "white"),
	)
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	games, err := c.FetchGames(context.Background(), "alice", platform.FetchOptions{FetchAll: true})
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "lichess:goodgame", games[0].GameUID)
}

func TestFetchGames_SortedDescending(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv := ndjsonServer(t,
		exportLine("old", base, "white"),
		exportLine("new", base.Add(2*time.Hour), "white"),
		exportLine("mid", base.Add(time.Hour), "white"),
	)
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	games, err := c.FetchGames(context.Background(), "alice", platform.FetchOptions{FetchAll: true})
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, "lichess:new", games[0].GameUID)
	assert.Equal(t, "lichess:mid", games[1].GameUID)
	assert.Equal(t, "lichess:old", games[2].GameUID)
}

func TestFetchGames_QueryParameters(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
	}))
	defer srv.Close()

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := lichess.New(lichess.WithBaseURL(srv.URL))
	_, err := c.FetchGames(context.Background(), "alice", platform.FetchOptions{Since: &since, MaxGames: 100})
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("%d", since.UnixMilli()), gotQuery["since"][0])
	assert.Equal(t, "100", gotQuery["max"][0])
	assert.Equal(t, "true", gotQuery["clocks"][0])
}

func TestFetchGames_FetchAllOmitsMax(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
	}))
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	_, err := c.FetchGames(context.Background(), "alice", platform.FetchOptions{MaxGames: 100, FetchAll: true})
	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "max")
}

func TestFetchGames_UserNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	_, err := c.FetchGames(context.Background(), "ghost", platform.FetchOptions{})
	assert.True(t, errors.IsUserNotFound(err))
}

func TestFetchGames_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	_, err := c.FetchGames(context.Background(), "alice", platform.FetchOptions{})
	assert.True(t, errors.IsRateLimited(err))
}

func TestValidateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/ghost") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"alice"}`))
	}))
	defer srv.Close()

	c := lichess.New(lichess.WithBaseURL(srv.URL))
	ok, err := c.ValidateUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalizeTermination(t *testing.T) {
	assert.Equal(t, models.TerminationCheckmate, lichess.NormalizeTermination("mate"))
	assert.Equal(t, models.TerminationTimeout, lichess.NormalizeTermination("outoftime"))
	assert.Equal(t, models.TerminationAbandoned, lichess.NormalizeTermination("timeout"))
	assert.Equal(t, models.TerminationAgreement, lichess.NormalizeTermination("draw"))
	assert.Equal(t, models.TerminationOther, lichess.NormalizeTermination("variantEnd"))
}
