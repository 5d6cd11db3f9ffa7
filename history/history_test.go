package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/config"
)

const seedYAML = `- id: FUNDEP
  domain: Vestibular da FUNDEP
  intro: Olá! Sou o assistente do vestibular.
- id: SEM_INTRO
  domain: Concursos
`

func openSQLite(t *testing.T) *GormStore {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "index.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o600))

	s, err := Open(context.Background(), config.HistoryConfig{
		Driver:        "sqlite",
		DSN:           filepath.Join(dir, "history.db"),
		IndexInfoFile: seed,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.IsType(t, &GormStore{}, s)
	return s.(*GormStore)
}

func TestGormStore_IndexInformation(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	tests := []struct {
		index, field, want string
	}{
		{"FUNDEP", FieldDomain, "Vestibular da FUNDEP"},
		{"FUNDEP", FieldIntro, "Olá! Sou o assistente do vestibular."},
		{"FUNDEP", FieldDisclaimer, DefaultDisclaimer},
		{"SEM_INTRO", FieldIntro, DefaultIntro},
		{"DESCONHECIDO", FieldDomain, "DESCONHECIDO"},
		{"DESCONHECIDO", "other", ""},
	}
	for _, tt := range tests {
		got, err := s.IndexInformation(ctx, tt.index, tt.field)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s", tt.index, tt.field)
	}
}

func TestGormStore_UpsertChatHistory(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := &ChatRecord{TurnID: "t1", UserID: "5511", Index: "FUNDEP", Timestamp: now, UserMessage: "oi", Answer: "olá"}
	rec.SetLatency(map[string]float64{"total": 1.5})
	require.NoError(t, s.UpsertChatHistory(ctx, rec))
	require.NoError(t, s.UpsertChatHistory(ctx, &ChatRecord{TurnID: "t2", UserID: "5511", Index: "FUNDEP", Timestamp: now.Add(time.Minute), UserMessage: "e aí?", Answer: "tudo"}))
	require.NoError(t, s.UpsertChatHistory(ctx, &ChatRecord{TurnID: "t1", UserID: "5511", Index: "FUNDEP", Timestamp: now, UserMessage: "oi", Answer: "olá de novo"}))
	require.NoError(t, s.UpsertChatHistory(ctx, &ChatRecord{TurnID: "t3", UserID: "outro", Index: "FUNDEP", Timestamp: now}))

	recs, err := s.Records(ctx, "5511", "FUNDEP")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "olá de novo", recs[0].Answer)
	assert.Equal(t, "tudo", recs[1].Answer)
	assert.JSONEq(t, `{"total":1.5}`, rec.Latency)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.HistoryConfig{Driver: "none"})
	require.NoError(t, err)
	assert.NoError(t, s.UpsertChatHistory(context.Background(), &ChatRecord{}))
	v, err := s.IndexInformation(context.Background(), "X", FieldIntro)
	require.NoError(t, err)
	assert.Equal(t, DefaultIntro, v)

	_, err = Open(context.Background(), config.HistoryConfig{Driver: "oracle"})
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))

	_, err = Open(context.Background(), config.HistoryConfig{Driver: "none", IndexInfoFile: "/does/not/exist.yaml"})
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (c *countingProvider) IndexInformation(_ context.Context, index, field string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return index + ":" + field, nil
}

func TestCachedProvider(t *testing.T) {
	next := &countingProvider{}
	p := NewCachedProvider(next, 8, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := p.IndexInformation(ctx, "FUNDEP", FieldDomain)
		require.NoError(t, err)
		assert.Equal(t, "FUNDEP:domain", v)
	}
	assert.EqualValues(t, 1, next.calls.Load())

	_, _ = p.IndexInformation(ctx, "FUNDEP", FieldIntro)
	assert.EqualValues(t, 2, next.calls.Load())

	p.Invalidate()
	_, _ = p.IndexInformation(ctx, "FUNDEP", FieldDomain)
	assert.EqualValues(t, 3, next.calls.Load())

	failing := &countingProvider{err: errors.New("down")}
	p = NewCachedProvider(failing, 8, time.Minute)
	_, err := p.IndexInformation(ctx, "i", FieldDomain)
	assert.Error(t, err)
	_, _ = p.IndexInformation(ctx, "i", FieldDomain)
	assert.EqualValues(t, 2, failing.calls.Load())
}
