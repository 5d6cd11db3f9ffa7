package retriever

import (
	"context"

	"github.com/neuralmind-ai/nsx-chatbot/metrics"
)

// Dispatcher is the single entry point used by the reasoning loop. The FAQ
// is tried first unless disabled; when it cannot answer, exactly one of the
// document search or the multi-document QA tool is used.
type Dispatcher struct {
	FAQ        *FAQTool
	Search     *NSXSearch
	Sense      *SenseTool
	UseSense   bool
	DisableFAQ bool
}

func (d *Dispatcher) Dispatch(ctx context.Context, q Query, turn *Turn) (Observation, error) {
	if turn == nil {
		turn = NewTurn()
	}

	if d.FAQ != nil && !d.DisableFAQ && !turn.DisableFAQ {
		stop := turn.Ledger.Start(metrics.StageFAQAnswer)
		obs, ok, err := d.FAQ.Resolve(ctx, q, turn)
		stop()
		if err != nil {
			metrics.IncToolCall(SourceFAQ.String(), "error")
			return Observation{}, err
		}
		if ok {
			metrics.IncToolCall(SourceFAQ.String(), "hit")
			return obs, nil
		}
		metrics.IncToolCall(SourceFAQ.String(), "miss")
	}

	var (
		obs    Observation
		err    error
		source = SourceNSX
	)
	if d.Sense != nil && (d.UseSense || turn.UseSense) {
		source = SourceSense
		stop := turn.Ledger.Start(metrics.StageSenseAnswer)
		obs, err = d.Sense.Resolve(ctx, q)
		stop()
	} else {
		stop := turn.Ledger.Start(metrics.StageNSXAnswer)
		obs, err = d.Search.Resolve(ctx, q)
		stop()
	}
	switch {
	case err != nil:
		metrics.IncToolCall(source.String(), "error")
	case obs.Sentinel:
		metrics.IncToolCall(source.String(), "sentinel")
	default:
		metrics.IncToolCall(source.String(), "hit")
	}
	return obs, err
}
