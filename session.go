package chatbot

import (
	"context"

	"github.com/neuralmind-ai/nsx-chatbot/history"
	"github.com/neuralmind-ai/nsx-chatbot/memory"
)

// Greeting returns the messages to send before the first answer of a
// conversation: the domain intro and the disclaimer, each once per
// (user, chatbot, index). Switching index records it as the last index.
func (e *Engine) Greeting(ctx context.Context, user, bot, index string) ([]string, error) {
	if err := e.store.SetLastIndex(ctx, user, bot, index); err != nil {
		return nil, err
	}
	k := memory.Key{User: user, Bot: bot, Index: index}
	var out []string
	for _, g := range []struct{ flag, field string }{
		{memory.FlagIntroSent, history.FieldIntro},
		{memory.FlagDisclaimerSent, history.FieldDisclaimer},
	} {
		sent, err := e.store.Flag(ctx, k, g.flag)
		if err != nil {
			return nil, err
		}
		if sent {
			continue
		}
		text, err := e.info.IndexInformation(ctx, index, g.field)
		if err != nil {
			text = history.Fallback(index, g.field)
		}
		if err := e.store.SetFlag(ctx, k, g.flag); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

// LastIndex returns the index the user talked to most recently, "" if none.
func (e *Engine) LastIndex(ctx context.Context, user, bot string) (string, error) {
	return e.store.LastIndex(ctx, user, bot)
}

// Reset forgets everything stored for (user, bot).
func (e *Engine) Reset(ctx context.Context, user, bot string) error {
	return e.store.Reset(ctx, user, bot)
}

// SetUserConfig stores a per-user override, see ConfigVerbose and ConfigModel.
func (e *Engine) SetUserConfig(ctx context.Context, user, bot, key, value string) error {
	return e.store.SetUserConfig(ctx, user, bot, key, value)
}
