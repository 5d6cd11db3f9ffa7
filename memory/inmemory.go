package memory

import (
	"context"
	"sync"
	"time"
)

type userState struct {
	convs     map[string]*Conversation
	flags     map[string]bool
	configs   map[string]string
	lastIndex string
	expiresAt time.Time
}

// InMemoryStore keeps state in process. Expiry is per (user, bot) and is
// refreshed by every write, as in the Redis store.
type InMemoryStore struct {
	mu    sync.Mutex
	users map[string]*userState
	ttl   time.Duration
	now   func() time.Time
}

func NewInMemoryStore(opts Options) *InMemoryStore {
	opts.applyDefaults()
	return &InMemoryStore{users: make(map[string]*userState), ttl: opts.TTL, now: time.Now}
}

// state returns the live state for user/bot, dropping it first if expired.
// Callers hold s.mu.
func (s *InMemoryStore) state(user, bot string, create bool) *userState {
	k := userKey(user, bot)
	st, ok := s.users[k]
	if ok && !st.expiresAt.IsZero() && s.now().After(st.expiresAt) {
		delete(s.users, k)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		st = &userState{
			convs:   make(map[string]*Conversation),
			flags:   make(map[string]bool),
			configs: make(map[string]string),
		}
		s.users[k] = st
	}
	return st
}

func (s *InMemoryStore) touch(st *userState) { st.expiresAt = s.now().Add(s.ttl) }

func (s *InMemoryStore) Get(_ context.Context, k Key) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(k.User, k.Bot, false)
	if st == nil || st.convs[k.Index] == nil {
		return Conversation{Interactions: []string{}}, nil
	}
	c := st.convs[k.Index]
	out := Conversation{Summary: c.Summary, Interactions: make([]string, len(c.Interactions))}
	copy(out.Interactions, c.Interactions)
	return out, nil
}

func (s *InMemoryStore) AppendInteraction(_ context.Context, k Key, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(k.User, k.Bot, true)
	c := st.convs[k.Index]
	if c == nil {
		c = &Conversation{}
		st.convs[k.Index] = c
	}
	c.Interactions = append(c.Interactions, text)
	s.touch(st)
	return nil
}

func (s *InMemoryStore) Replace(_ context.Context, k Key, c Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(k.User, k.Bot, true)
	items := make([]string, len(c.Interactions))
	copy(items, c.Interactions)
	st.convs[k.Index] = &Conversation{Interactions: items, Summary: c.Summary}
	s.touch(st)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.state(k.User, k.Bot, false); st != nil {
		delete(st.convs, k.Index)
	}
	return nil
}

func (s *InMemoryStore) LastIndex(_ context.Context, user, bot string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.state(user, bot, false); st != nil {
		return st.lastIndex, nil
	}
	return "", nil
}

func (s *InMemoryStore) SetLastIndex(_ context.Context, user, bot, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(user, bot, true)
	st.lastIndex = index
	s.touch(st)
	return nil
}

func (s *InMemoryStore) Flag(_ context.Context, k Key, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.state(k.User, k.Bot, false); st != nil {
		return st.flags[flagField(k.Index, name)], nil
	}
	return false, nil
}

func (s *InMemoryStore) SetFlag(_ context.Context, k Key, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(k.User, k.Bot, true)
	st.flags[flagField(k.Index, name)] = true
	s.touch(st)
	return nil
}

func (s *InMemoryStore) UserConfig(_ context.Context, user, bot, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.state(user, bot, false); st != nil {
		v, ok := st.configs[key]
		return v, ok, nil
	}
	return "", false, nil
}

func (s *InMemoryStore) SetUserConfig(_ context.Context, user, bot, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(user, bot, true)
	st.configs[key] = value
	s.touch(st)
	return nil
}

func (s *InMemoryStore) Reset(_ context.Context, user, bot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userKey(user, bot))
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
