package quota

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
)

// ErrQuotaExceeded signals that the caller's annual match allowance is used
// up. Handlers map it to 402 upgrade_required.
var ErrQuotaExceeded = errors.New("annual match quota exceeded")

// Enforcer gates match creation on the per-user annual allowance
type Enforcer struct {
	users  interfaces.UserStorage
	logger arbor.ILogger
}

// NewEnforcer creates a quota enforcer backed by user storage
func NewEnforcer(users interfaces.UserStorage, logger arbor.ILogger) *Enforcer {
	return &Enforcer{users: users, logger: logger}
}

// Consume spends one unit of the user's annual allowance. Privileged
// callers bypass the gate entirely and their usage is not counted. The
// increment is one conditional statement in storage, so concurrent requests
// cannot spend the same unit twice; a request that loses the race sees a
// count past the limit and is rejected.
func (e *Enforcer) Consume(ctx context.Context, userID string, privileged bool) error {
	if privileged {
		return nil
	}

	usage, err := e.users.Usage(ctx, userID)
	if err != nil {
		return err
	}
	if usage.Remaining <= 0 {
		return ErrQuotaExceeded
	}

	count, limit, err := e.users.IncrementAnnualUsage(ctx, userID)
	if err != nil {
		return err
	}
	if count > limit {
		e.logger.Warn().
			Str("user_id", userID).
			Int("count", count).
			Int("limit", limit).
			Msg("Quota race lost, rejecting match")
		return ErrQuotaExceeded
	}

	return nil
}
