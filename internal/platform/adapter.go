package platform

import (
	"context"
	"time"

	"github.com/vytor/chessync/internal/models"
)

// FetchOptions narrows a fetch. Since/Until bound the play timestamp
// (applied client-side when the platform API cannot). MaxGames caps the
// result unless FetchAll is set, in which case the adapter iterates the
// platform's export exhaustively.
type FetchOptions struct {
	Since    *time.Time
	Until    *time.Time
	MaxGames int
	FetchAll bool
}

// SourceAdapter translates one platform's native game export into
// canonical Game records. Implementations return games sorted by play
// timestamp descending and surface user-not-found and rate-limit
// conditions as typed errors so the sync orchestrator can tell a bad
// username from transient throttling.
type SourceAdapter interface {
	Source() models.Source
	ValidateUser(ctx context.Context, username string) (bool, error)
	FetchGames(ctx context.Context, username string, opts FetchOptions) ([]models.Game, error)
}
