package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/vytor/chessync/internal/errors"
	"github.com/vytor/chessync/internal/logger"
	"github.com/vytor/chessync/internal/models"
)

const defaultCloudBaseURL = "https://lichess.org"

// CloudClient queries the Lichess shared evaluation cache. A cache
// miss is a normal outcome, reported as a nil Evaluation with no
// error; only transport failures and throttling are errors.
type CloudClient struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// CloudOption configures a CloudClient.
type CloudOption func(*CloudClient)

// WithCloudBaseURL overrides the API base URL.
func WithCloudBaseURL(url string) CloudOption {
	return func(c *CloudClient) { c.baseURL = url }
}

// WithCloudHTTPClient overrides the underlying HTTP client.
func WithCloudHTTPClient(hc *http.Client) CloudOption {
	return func(c *CloudClient) { c.httpClient = hc }
}

func NewCloudClient(opts ...CloudOption) *CloudClient {
	c := &CloudClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultCloudBaseURL,
		log:        logger.Default().WithPrefix("cloud-eval"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cloudEvalResp struct {
	Depth int `json:"depth"`
	PVs   []struct {
		Moves string `json:"moves"`
		CP    *int   `json:"cp"`
		Mate  *int   `json:"mate"`
	} `json:"pvs"`
}

// GetCloudEval looks the position up in the shared cache. Scores come
// back in centipawns from White's perspective, matching the local
// evaluator's convention.
func (c *CloudClient) GetCloudEval(ctx context.Context, fen string) (*models.Evaluation, error) {
	log := logger.FromContext(ctx).WithPrefix("cloud-eval")

	q := url.Values{}
	q.Set("fen", fen)
	q.Set("multiPv", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/cloud-eval?%s", c.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, apperrors.NewExternalAPIError("lichess cloud-eval", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalAPIError("lichess cloud-eval", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Not cached upstream. Expected for most positions past the opening.
		log.Debug("cache miss")
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError("lichess cloud-eval")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewExternalAPIError("lichess cloud-eval",
			fmt.Errorf("cloud-eval status %d: %s", resp.StatusCode, body))
	}

	var out cloudEvalResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewExternalAPIError("lichess cloud-eval", err)
	}
	if len(out.PVs) == 0 {
		return nil, nil
	}

	pv := out.PVs[0]
	eval := &models.Evaluation{
		Depth:  out.Depth,
		Source: models.EvalSourceCloud,
	}
	if fields := strings.Fields(pv.Moves); len(fields) > 0 {
		eval.BestMove = fields[0]
	}
	switch {
	case pv.Mate != nil:
		eval.Mate = pv.Mate
		eval.CP = mateToCP(*pv.Mate)
	case pv.CP != nil:
		eval.CP = float64(*pv.CP)
	default:
		return nil, nil
	}

	log.Debug("cache hit: depth=%d, cp=%.0f, best=%s", eval.Depth, eval.CP, eval.BestMove)
	return eval, nil
}
