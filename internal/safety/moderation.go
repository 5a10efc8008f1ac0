package safety

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Moderator is the external moderation capability. Allowed=false means the
// service flagged the text.
type Moderator interface {
	Moderate(ctx context.Context, text string) (allowed bool, err error)
}

// moderationMaxInput bounds the text sent to the moderation service.
const moderationMaxInput = 4000

// ModerationOK consults an external moderation service with bounded
// exponential backoff. It fails open: if the service is unavailable or keeps
// erroring, the text is treated as allowed. The primary blocklist/pattern/
// classifier stage remains the enforced gate; moderation is a secondary
// signal, so availability wins here.
func ModerationOK(ctx context.Context, m Moderator, text string) bool {
	if m == nil {
		return true
	}
	if len(text) > moderationMaxInput {
		text = text[:moderationMaxInput]
	}

	var allowed bool
	backoff := retry.WithMaxRetries(2, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := m.Moderate(ctx, text)
		if err != nil {
			return retry.RetryableError(err)
		}
		allowed = ok
		return nil
	})
	if err != nil {
		slog.Debug("moderation unavailable, failing open", "error", err)
		return true
	}
	return allowed
}
