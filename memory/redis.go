package memory

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/config"
)

// RedisStore persists sessions in Redis.
// Data model, with u = prefix + user + "_" + bot:
//   - u              hash: created, last_index, flag:<index>:<name>, config:<key>, summary:<index>
//   - u:history:<ix> list of interactions for one index
//   - u:indexes      set of indexes that have history, used by Reset
//
// Every write refreshes the TTL. History writes also set "created" so the
// hash exists when its EXPIRE runs.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg config.SessionConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.Memory("redis ping", err)
	}
	return NewRedisStoreWithClient(rdb, Options{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       time.Duration(cfg.TTLSeconds) * time.Second,
	}), nil
}

func NewRedisStoreWithClient(rdb *redis.Client, opts Options) *RedisStore {
	opts.applyDefaults()
	return &RedisStore{rdb: rdb, prefix: opts.KeyPrefix, ttl: opts.TTL}
}

func (s *RedisStore) hashKey(user, bot string) string { return s.prefix + userKey(user, bot) }
func (s *RedisStore) listKey(k Key) string { return s.hashKey(k.User, k.Bot) + ":history:" + k.Index }
func (s *RedisStore) indexesKey(user, bot string) string {
	return s.hashKey(user, bot) + ":indexes"
}

func flagField(index, name string) string { return "flag:" + index + ":" + name }
func summaryField(index string) string { return "summary:" + index }
func configField(key string) string { return "config:" + key }

const (
	lastIndexField = "last_index"
	createdField   = "created"
)

func (s *RedisStore) expireUser(ctx context.Context, p redis.Pipeliner, user, bot string) {
	p.Expire(ctx, s.hashKey(user, bot), s.ttl)
	p.Expire(ctx, s.indexesKey(user, bot), s.ttl)
}

func (s *RedisStore) expireAll(ctx context.Context, p redis.Pipeliner, k Key) {
	s.expireUser(ctx, p, k.User, k.Bot)
	p.Expire(ctx, s.listKey(k), s.ttl)
}

// hset writes one field of the user hash and refreshes the TTL in one MULTI.
func (s *RedisStore) hset(ctx context.Context, user, bot, field, value string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.hashKey(user, bot), field, value)
		s.expireUser(ctx, p, user, bot)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, k Key) (Conversation, error) {
	var items *redis.StringSliceCmd
	var summary *redis.StringCmd
	_, _ = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		items = p.LRange(ctx, s.listKey(k), 0, -1)
		summary = p.HGet(ctx, s.hashKey(k.User, k.Bot), summaryField(k.Index))
		return nil
	})
	if err := items.Err(); err != nil {
		return Conversation{}, errs.Memory("get history", err)
	}
	if err := summary.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return Conversation{}, errs.Memory("get summary", err)
	}
	out := Conversation{Interactions: items.Val(), Summary: summary.Val()}
	if out.Interactions == nil {
		out.Interactions = []string{}
	}
	return out, nil
}

// AppendInteraction runs RPUSH and the TTL refresh in one MULTI, so two
// racing appends are both kept.
func (s *RedisStore) AppendInteraction(ctx context.Context, k Key, text string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, s.listKey(k), text)
		p.SAdd(ctx, s.indexesKey(k.User, k.Bot), k.Index)
		p.HSetNX(ctx, s.hashKey(k.User, k.Bot), createdField, "1")
		s.expireAll(ctx, p, k)
		return nil
	})
	return errs.Memory("append interaction", err)
}

func (s *RedisStore) Replace(ctx context.Context, k Key, c Conversation) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.listKey(k))
		if len(c.Interactions) > 0 {
			vals := make([]interface{}, len(c.Interactions))
			for i, v := range c.Interactions {
				vals[i] = v
			}
			p.RPush(ctx, s.listKey(k), vals...)
		}
		p.HSet(ctx, s.hashKey(k.User, k.Bot), summaryField(k.Index), c.Summary)
		p.SAdd(ctx, s.indexesKey(k.User, k.Bot), k.Index)
		s.expireAll(ctx, p, k)
		return nil
	})
	return errs.Memory("replace history", err)
}

func (s *RedisStore) Clear(ctx context.Context, k Key) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.listKey(k))
		p.HDel(ctx, s.hashKey(k.User, k.Bot), summaryField(k.Index))
		p.SRem(ctx, s.indexesKey(k.User, k.Bot), k.Index)
		return nil
	})
	return errs.Memory("clear history", err)
}

// hget returns ok=false on a missing field.
func (s *RedisStore) hget(ctx context.Context, user, bot, field string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.hashKey(user, bot), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) LastIndex(ctx context.Context, user, bot string) (string, error) {
	v, _, err := s.hget(ctx, user, bot, lastIndexField)
	return v, errs.Memory("get last index", err)
}

func (s *RedisStore) SetLastIndex(ctx context.Context, user, bot, index string) error {
	return errs.Memory("set last index", s.hset(ctx, user, bot, lastIndexField, index))
}

func (s *RedisStore) Flag(ctx context.Context, k Key, name string) (bool, error) {
	_, ok, err := s.hget(ctx, k.User, k.Bot, flagField(k.Index, name))
	return ok, errs.Memory("get flag", err)
}

func (s *RedisStore) SetFlag(ctx context.Context, k Key, name string) error {
	return errs.Memory("set flag", s.hset(ctx, k.User, k.Bot, flagField(k.Index, name), "1"))
}

func (s *RedisStore) UserConfig(ctx context.Context, user, bot, key string) (string, bool, error) {
	v, ok, err := s.hget(ctx, user, bot, configField(key))
	return v, ok, errs.Memory("get user config", err)
}

func (s *RedisStore) SetUserConfig(ctx context.Context, user, bot, key, value string) error {
	return errs.Memory("set user config", s.hset(ctx, user, bot, configField(key), value))
}

func (s *RedisStore) Reset(ctx context.Context, user, bot string) error {
	indexes, err := s.rdb.SMembers(ctx, s.indexesKey(user, bot)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errs.Memory("reset", err)
	}
	keys := []string{s.hashKey(user, bot), s.indexesKey(user, bot)}
	for _, ix := range indexes {
		keys = append(keys, s.listKey(Key{User: user, Bot: bot, Index: ix}))
	}
	return errs.Memory("reset", s.rdb.Del(ctx, keys...).Err())
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
