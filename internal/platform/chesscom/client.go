package chesscom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	apperrors "github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
	"github.com/vytor/chessync/internal/platform"
)

const defaultBaseURL = "https://api.chess.com"

// Client is the Chess.com source adapter. The published API exposes one
// archive page per calendar month, so a fetch walks archive pages from
// newest to oldest with a small delay between requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageDelay  time.Duration
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithPageDelay sets the pause between consecutive archive requests.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.pageDelay = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		pageDelay:  300 * time.Millisecond,
		log:        logger.Default().WithPrefix("chesscom"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ platform.SourceAdapter = (*Client)(nil)

func (c *Client) Source() models.Source { return models.SourceChessCom }

type archivesResp struct {
	Archives []string `json:"archives"`
}

// MonthlyGame is one entry of a monthly archive page.
type MonthlyGame struct {
	URL         string `json:"url"`
	PGN         string `json:"pgn"`
	TimeControl string `json:"time_control"`
	TimeClass   string `json:"time_class"`
	EndTime     int64  `json:"end_time"`
	Rated       bool   `json:"rated"`
	White       Player `json:"white"`
	Black       Player `json:"black"`
	Accuracies  *struct {
		White float64 `json:"white"`
		Black float64 `json:"black"`
	} `json:"accuracies"`
}

// Player is one side of a monthly archive game.
type Player struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// ValidateUser checks whether the username exists on Chess.com.
func (c *Client) ValidateUser(ctx context.Context, username string) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("username", username)
	status, _, err := c.get(ctx, fmt.Sprintf("%s/pub/player/%s", c.baseURL, username), nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		log.Debug("user does not exist")
		return false, nil
	case http.StatusTooManyRequests:
		return false, apperrors.NewRateLimitedError("chess.com")
	default:
		return false, apperrors.NewExternalAPIError("chess.com", fmt.Errorf("player status %d", status))
	}
}

// FetchGames walks the user's monthly archives newest-first and converts
// every native record into the canonical shape. A failed archive page is
// logged and skipped; games recovered from other pages are preserved.
func (c *Client) FetchGames(ctx context.Context, username string, opts platform.FetchOptions) ([]models.Game, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("username", username)
	start := time.Now()

	archives, err := c.fetchArchives(ctx, username)
	if err != nil {
		return nil, err
	}
	archives = filterArchivesSince(archives, opts.Since)
	log.Debug("scanning %d archive pages", len(archives))

	var games []models.Game
	var pageErrs int
	// Newest archives last in the listing; walk backwards.
	for i := len(archives) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !opts.FetchAll && opts.MaxGames > 0 && len(games) >= opts.MaxGames {
			break
		}

		monthly, err := c.fetchMonthly(ctx, archives[i])
		if err != nil {
			if apperrors.IsRateLimited(err) {
				// Throttling will hit every remaining page too; surface
				// it unless earlier pages already produced games.
				if len(games) == 0 {
					return nil, err
				}
				log.Warn("rate limited mid-scan, returning %d games fetched so far", len(games))
				break
			}
			log.Warn("archive page failed, continuing: %v", err)
			pageErrs++
			continue
		}

		for _, mg := range monthly {
			g := c.convertGame(username, mg)
			if opts.Since != nil && !g.PlayedAt.After(*opts.Since) {
				continue
			}
			if opts.Until != nil && g.PlayedAt.After(*opts.Until) {
				continue
			}
			games = append(games, g)
		}

		if i > 0 {
			// Deliberate pause between archive pages to stay under the
			// platform's rate limits.
			select {
			case <-time.After(c.pageDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if len(games) == 0 && pageErrs > 0 {
		return nil, apperrors.NewExternalAPIError("chess.com", fmt.Errorf("%d archive pages failed", pageErrs))
	}

	sort.Slice(games, func(a, b int) bool {
		return games[a].PlayedAt.After(games[b].PlayedAt)
	})
	if !opts.FetchAll && opts.MaxGames > 0 && len(games) > opts.MaxGames {
		games = games[:opts.MaxGames]
	}

	log.Info("fetched %d games from %d archives in %v", len(games), len(archives), time.Since(start))
	return games, nil
}

func (c *Client) fetchArchives(ctx context.Context, username string) ([]string, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("username", username)
	url := fmt.Sprintf("%s/pub/player/%s/games/archives", c.baseURL, username)

	var out archivesResp
	status, body, err := c.get(ctx, url, &out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		log.Debug("found %d archives", len(out.Archives))
		return out.Archives, nil
	case http.StatusNotFound:
		return nil, apperrors.NewUserNotFoundError("chess.com", username)
	case http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError("chess.com")
	default:
		return nil, apperrors.NewExternalAPIError("chess.com", fmt.Errorf("archives status %d: %s", status, body))
	}
}

func (c *Client) fetchMonthly(ctx context.Context, archiveURL string) ([]MonthlyGame, error) {
	var payload struct {
		Games []MonthlyGame `json:"games"`
	}
	status, body, err := c.get(ctx, archiveURL, &payload)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return payload.Games, nil
	case http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError("chess.com")
	default:
		return nil, apperrors.NewExternalAPIError("chess.com", fmt.Errorf("monthly status %d: %s", status, body))
	}
}

// get performs a GET and decodes JSON into out on 200. The status code
// is always returned so callers can map it onto the error taxonomy; a
// non-nil error means the request itself failed.
func (c *Client) get(ctx context.Context, url string, out any) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", apperrors.NewExternalAPIError("chess.com", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", apperrors.NewExternalAPIError("chess.com", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, string(body), nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, "", apperrors.NewExternalAPIError("chess.com", err)
		}
	}
	return resp.StatusCode, "", nil
}
