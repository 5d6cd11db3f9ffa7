// Package safety classifies text as harmful through an external moderation service.
package safety

import (
	"context"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/common/logger"
)

// Moderator asks the moderation service whether text is flagged.
type Moderator interface {
	Flagged(ctx context.Context, text string) (bool, error)
}

// Gate applies the failure policy on top of a Moderator.
//
// Connectivity failures and exhausted timeouts always propagate (as
// KindModeration / KindTimeout). Any other failure is treated as "not
// harmful" when FailOpen is set, and as KindModeration otherwise.
type Gate struct {
	Moderator Moderator
	FailOpen  bool
}

func NewGate(m Moderator, failOpen bool) *Gate {
	return &Gate{Moderator: m, FailOpen: failOpen}
}

// IsHarmful reports true only when the service explicitly flags text.
func (g *Gate) IsHarmful(ctx context.Context, text string) (bool, error) {
	flagged, err := g.Moderator.Flagged(ctx, text)
	if err == nil {
		return flagged, nil
	}
	switch {
	case errs.IsTimeout(err):
		return false, err
	case errs.IsConnectivity(err):
		return false, errs.E(errs.KindModeration, "moderation unreachable", err)
	case g.FailOpen:
		logger.Warnf("safety: moderation failed, treating text as not harmful: %v", err)
		return false, nil
	default:
		if errs.Is(err, errs.KindModeration) {
			return false, err
		}
		return false, errs.E(errs.KindModeration, "moderation", err)
	}
}
