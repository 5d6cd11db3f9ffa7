package config

// Config represents the main configuration structure for the chatbot
type Config struct {
	Completion LLMConfig        `json:"completion" yaml:"completion"`
	Moderation ModerationConfig `json:"moderation" yaml:"moderation"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Reasoning  ReasoningConfig  `json:"reasoning" yaml:"reasoning"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	HTTP       HTTPClientConfig `json:"http" yaml:"http"`
	History    HistoryConfig    `json:"history" yaml:"history"`
	Log        LogConfig        `json:"log" yaml:"log"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// LLMConfig defines the completion service.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // Available options: openai, prompt_answerer
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TimeoutMs   int     `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
}

// ModerationConfig defines the content safety backend.
type ModerationConfig struct {
	Provider  string `json:"provider" yaml:"provider"` // Available options: openai, http
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	// FailOpen treats a non-connectivity moderation failure as "not harmful".
	FailOpen *bool `json:"fail_open,omitempty" yaml:"fail_open,omitempty"`
}

// SearchConfig points at the ranked search, FAQ scoring and multi-doc QA services.
type SearchConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	ScoreEndpoint   string `json:"score_endpoint" yaml:"score_endpoint"`
	SenseEndpoint   string `json:"sense_endpoint" yaml:"sense_endpoint"`
	APIKey          string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Language        string `json:"language,omitempty" yaml:"language,omitempty"`
	MaxDocsToReturn int    `json:"max_docs_to_return,omitempty" yaml:"max_docs_to_return,omitempty"`
	NumDocs         int    `json:"num_docs,omitempty" yaml:"num_docs,omitempty"`
	TimeoutMs       int    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	SenseTimeoutMs  int    `json:"sense_timeout_ms,omitempty" yaml:"sense_timeout_ms,omitempty"`
	// FAQDir holds one <index>.json file of question -> answer per domain index.
	FAQDir string `json:"faq_dir,omitempty" yaml:"faq_dir,omitempty"`
}

// ReasoningConfig bounds the reasoning loop.
type ReasoningConfig struct {
	Handler               string `json:"handler" yaml:"handler"` // Available options: react, function_call
	MaxIterations         int    `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	MaxTokensPrompt       int    `json:"max_tokens_prompt,omitempty" yaml:"max_tokens_prompt,omitempty"`
	MaxTokensChatHistory  int    `json:"max_tokens_chat_history,omitempty" yaml:"max_tokens_chat_history,omitempty"`
	MaxFAQQuestions       int    `json:"max_faq_questions,omitempty" yaml:"max_faq_questions,omitempty"`
	MaxTokensFAQPrompt    int    `json:"max_tokens_faq_prompt,omitempty" yaml:"max_tokens_faq_prompt,omitempty"`
	MaxTokensFunctionCall int    `json:"max_tokens_function_call,omitempty" yaml:"max_tokens_function_call,omitempty"`
	ParallelObservations  int    `json:"parallel_observations,omitempty" yaml:"parallel_observations,omitempty"`
	UseSense              bool   `json:"use_sense,omitempty" yaml:"use_sense,omitempty"`
	DisableFAQ            bool   `json:"disable_faq,omitempty" yaml:"disable_faq,omitempty"`
	EncodingModel         string `json:"encoding_model,omitempty" yaml:"encoding_model,omitempty"`
}

// HistoryConfig selects the chat-history audit database.
type HistoryConfig struct {
	Driver string `json:"driver" yaml:"driver"` // Available options: sqlite, postgres, mysql, none
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// IndexInfoFile seeds domain metadata rows from a YAML list on startup.
	IndexInfoFile  string `json:"index_info_file,omitempty" yaml:"index_info_file,omitempty"`
	CacheSize      int    `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
	CacheTTLSecond int    `json:"cache_ttl_seconds,omitempty" yaml:"cache_ttl_seconds,omitempty"`
}

type LogConfig struct {
	Level       string `json:"level,omitempty" yaml:"level,omitempty"`
	Development bool   `json:"development,omitempty" yaml:"development,omitempty"`
}

type ServerConfig struct {
	HTTPAddr    string `json:"http_addr,omitempty" yaml:"http_addr,omitempty"`
	MetricsPath string `json:"metrics_path,omitempty" yaml:"metrics_path,omitempty"`
}

// ModerationFailOpen reports the effective fail_open policy.
func (c *Config) ModerationFailOpen() bool {
	return c.Moderation.FailOpen == nil || *c.Moderation.FailOpen
}
