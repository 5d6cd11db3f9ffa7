package config

// SessionConfig selects the session memory store. If store is empty or
// "inmemory", an in-process store is used.
type SessionConfig struct {
	Store      string      `json:"store,omitempty" yaml:"store,omitempty"` // inmemory|redis
	TTLSeconds int         `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	Redis      RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr      string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// HTTPClientConfig holds defaults for outbound calls. Timeouts are retried
// immediately up to MaxRetries attempts; nothing else is retried.
type HTTPClientConfig struct {
	TimeoutMs  int `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}
