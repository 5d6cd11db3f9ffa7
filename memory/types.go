package memory

import (
	"context"
	"time"
)

// Key identifies one conversation: a user talking to a chatbot instance
// about one domain index.
type Key struct {
	User  string
	Bot   string
	Index string
}

// Conversation is the stored state of one Key. Interactions are kept in
// arrival order, each one already formatted as "User: ...\nAssistant: ...\n".
type Conversation struct {
	Interactions []string `json:"interactions"`
	Summary      string   `json:"summary"`
}

// Empty reports whether there is nothing stored.
func (c Conversation) Empty() bool { return len(c.Interactions) == 0 && c.Summary == "" }

// Flags used for one-time greetings.
const (
	FlagIntroSent      = "intro_sent"
	FlagDisclaimerSent = "disclaimer_sent"
)

// Store keeps per-user session state. Every failure is returned as an
// errs.KindMemory error; nothing is swallowed.
type Store interface {
	Get(ctx context.Context, k Key) (Conversation, error)
	// AppendInteraction appends text and refreshes the idle expiry.
	AppendInteraction(ctx context.Context, k Key, text string) error
	// Replace overwrites interactions and summary of k.
	Replace(ctx context.Context, k Key, c Conversation) error
	Clear(ctx context.Context, k Key) error

	LastIndex(ctx context.Context, user, bot string) (string, error)
	SetLastIndex(ctx context.Context, user, bot, index string) error

	Flag(ctx context.Context, k Key, name string) (bool, error)
	SetFlag(ctx context.Context, k Key, name string) error

	// UserConfig returns ok=false when key was never set.
	UserConfig(ctx context.Context, user, bot, key string) (value string, ok bool, err error)
	SetUserConfig(ctx context.Context, user, bot, key, value string) error

	// Reset drops configs, flags, last index and history of every index.
	Reset(ctx context.Context, user, bot string) error

	Close() error
}

// Options shared by the store implementations.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

func (o *Options) applyDefaults() {
	if o.KeyPrefix == "" {
		o.KeyPrefix = "nsxbot:"
	}
	if o.TTL <= 0 {
		o.TTL = time.Hour
	}
}

func userKey(user, bot string) string { return user + "_" + bot }
