package lichess

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	apperrors "github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
)

const defaultBaseURL = "https://lichess.org"

// Client is the Lichess source adapter. The export API streams a
// user's full game history as NDJSON in one request, so there is no
// page iteration; date filtering is supported natively via query
// parameters.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(opts ...Option) *Client {
	c := &Client{
		// Full-history exports stream for a while; allow it.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    defaultBaseURL,
		log:        logger.Default().WithPrefix("lichess"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ platform.SourceAdapter = (*Client)(nil)

func (c *Client) Source() models.Source { return models.SourceLichess }

// exportGame is one NDJSON line of the Lichess game export.
type exportGame struct {
	ID         string `json:"id"`
	Rated      bool   `json:"rated"`
	Speed      string `json:"speed"`
	Status     string `json:"status"`
	Winner     string `json:"winner"`
	CreatedAt  int64  `json:"createdAt"`
	LastMoveAt int64  `json:"lastMoveAt"`
	Moves      string `json:"moves"`
	PGN        string `json:"pgn"`
	Clocks     []int  `json:"clocks"` // centiseconds, one per ply
	Clock      *struct {
		Initial   int `json:"initial"`
		Increment int `json:"increment"`
	} `json:"clock"`
	Opening *struct {
		ECO  string `json:"eco"`
		Name string `json:"name"`
	} `json:"opening"`
	Players struct {
		White exportPlayer `json:"white"`
		Black exportPlayer `json:"black"`
	} `json:"players"`
}

type exportPlayer struct {
	User *struct {
		Name string `json:"name"`
	} `json:"user"`
	Rating     int  `json:"rating"`
	RatingDiff *int `json:"ratingDiff"`
	Analysis   *struct {
		Inaccuracy int     `json:"inaccuracy"`
		Mistake    int     `json:"mistake"`
		Blunder    int     `json:"blunder"`
		ACPL       float64 `json:"acpl"`
		Accuracy   float64 `json:"accuracy"`
	} `json:"analysis"`
}

// ValidateUser checks whether the username exists on Lichess.
func (c *Client) ValidateUser(ctx context.Context, username string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/user/%s", c.baseURL, url.PathEscape(username)), nil)
	if err != nil {
		return false, apperrors.NewExternalAPIError("lichess", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, apperrors.NewExternalAPIError("lichess", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	case http.StatusTooManyRequests:
		return false, apperrors.NewRateLimitedError("lichess")
	default:
		return false, apperrors.NewExternalAPIError("lichess", fmt.Errorf("user status %d", resp.StatusCode))
	}
}

// FetchGames streams the user's game export. Date bounds map directly
// onto the API's since/until parameters (milliseconds); MaxGames maps
// onto max unless FetchAll is set, in which case the export is
// unbounded and streams the complete history.
func (c *Client) FetchGames(ctx context.Context, username string, opts platform.FetchOptions) ([]models.Game, error) {
	log := logger.FromContext(ctx).WithPrefix("lichess").WithField("username", username)
	start := time.Now()

	q := url.Values{}
	q.Set("pgnInJson", "true")
	q.Set("clocks", "true")
	q.Set("evals", "true")
	q.Set("opening", "true")
	q.Set("moves", "true")
	if opts.Since != nil {
		q.Set("since", strconv.FormatInt(opts.Since.UnixMilli(), 10))
	}
	if opts.Until != nil {
		q.Set("until", strconv.FormatInt(opts.Until.UnixMilli(), 10))
	}
	if !opts.FetchAll && opts.MaxGames > 0 {
		q.Set("max", strconv.Itoa(opts.MaxGames))
	}

	exportURL := fmt.Sprintf("%s/api/games/user/%s?%s", c.baseURL, url.PathEscape(username), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, apperrors.NewExternalAPIError("lichess", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalAPIError("lichess", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, apperrors.NewUserNotFoundError("lichess", username)
	case http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError("lichess")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperrors.NewExternalAPIError("lichess", fmt.Errorf("export status %d: %s", resp.StatusCode, body))
	}

	var games []models.Game
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var eg exportGame
		if err := json.Unmarshal(line, &eg); err != nil {
			log.Warn("skipping malformed export line: %v", err)
			continue
		}
		games = append(games, convertGame(username, eg))
	}
	if err := scanner.Err(); err != nil {
		// Preserve what the stream yielded before breaking.
		if len(games) == 0 {
			return nil, apperrors.NewExternalAPIError("lichess", err)
		}
		log.Warn("export stream ended early after %d games: %v", len(games), err)
	}

	sort.Slice(games, func(a, b int) bool {
		return games[a].PlayedAt.After(games[b].PlayedAt)
	})

	log.Info("fetched %d games in %v", len(games), time.Since(start))
	return games, nil
}
