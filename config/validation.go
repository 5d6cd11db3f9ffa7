package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errs ValidationErrors
	errs = append(errs, c.validateCompletion()...)
	errs = append(errs, c.validateModeration()...)
	errs = append(errs, c.validateSearch()...)
	errs = append(errs, c.validateReasoning()...)
	errs = append(errs, c.validateSession()...)
	errs = append(errs, c.validateHistory()...)
	if c.HTTP.MaxRetries < 1 {
		errs = append(errs, ValidationError{
			Field:   "http.max_retries",
			Message: fmt.Sprintf("max_retries must be at least 1, got %d", c.HTTP.MaxRetries),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateCompletion() ValidationErrors {
	var errs ValidationErrors
	switch c.Completion.Provider {
	case "openai":
	case "prompt_answerer":
		if c.Completion.BaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   "completion.base_url",
				Message: "completion base_url is required for prompt_answerer provider",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "completion.provider",
			Message: fmt.Sprintf("unsupported completion provider %q", c.Completion.Provider),
		})
	}
	if c.Completion.Model == "" {
		errs = append(errs, ValidationError{Field: "completion.model", Message: "completion model is required"})
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "completion.temperature",
			Message: fmt.Sprintf("temperature must be within [0, 2], got %v", c.Completion.Temperature),
		})
	}
	return errs
}

func (c *Config) validateModeration() ValidationErrors {
	var errs ValidationErrors
	switch c.Moderation.Provider {
	case "openai":
	case "http":
		if c.Moderation.BaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   "moderation.base_url",
				Message: "moderation base_url is required for http provider",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "moderation.provider",
			Message: fmt.Sprintf("unsupported moderation provider %q", c.Moderation.Provider),
		})
	}
	return errs
}

func (c *Config) validateSearch() ValidationErrors {
	var errs ValidationErrors
	if c.Search.MaxDocsToReturn <= 0 {
		errs = append(errs, ValidationError{
			Field:   "search.max_docs_to_return",
			Message: fmt.Sprintf("max_docs_to_return must be positive, got %d", c.Search.MaxDocsToReturn),
		})
	}
	if c.Search.NumDocs <= 0 || c.Search.NumDocs > c.Search.MaxDocsToReturn {
		errs = append(errs, ValidationError{
			Field:   "search.num_docs",
			Message: fmt.Sprintf("num_docs must be within [1, max_docs_to_return], got %d", c.Search.NumDocs),
		})
	}
	return errs
}

func (c *Config) validateReasoning() ValidationErrors {
	var errs ValidationErrors
	r := c.Reasoning
	if r.Handler != HandlerReAct && r.Handler != HandlerFunctionCall {
		errs = append(errs, ValidationError{
			Field:   "reasoning.handler",
			Message: fmt.Sprintf("unsupported handler %q", r.Handler),
		})
	}
	if r.MaxIterations <= 0 {
		errs = append(errs, ValidationError{
			Field:   "reasoning.max_iterations",
			Message: fmt.Sprintf("max_iterations must be positive, got %d", r.MaxIterations),
		})
	}
	if r.MaxTokensPrompt <= 0 {
		errs = append(errs, ValidationError{
			Field:   "reasoning.max_tokens_prompt",
			Message: fmt.Sprintf("max_tokens_prompt must be positive, got %d", r.MaxTokensPrompt),
		})
	}
	if r.MaxTokensChatHistory >= r.MaxTokensPrompt {
		errs = append(errs, ValidationError{
			Field:   "reasoning.max_tokens_chat_history",
			Message: "max_tokens_chat_history must be below max_tokens_prompt",
		})
	}
	if r.ParallelObservations <= 0 {
		errs = append(errs, ValidationError{
			Field:   "reasoning.parallel_observations",
			Message: fmt.Sprintf("parallel_observations must be positive, got %d", r.ParallelObservations),
		})
	}
	return errs
}

func (c *Config) validateSession() ValidationErrors {
	var errs ValidationErrors
	switch c.Session.Store {
	case "inmemory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			errs = append(errs, ValidationError{
				Field:   "session.redis.addr",
				Message: "redis addr is required for redis session store",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "session.store",
			Message: fmt.Sprintf("unsupported session store %q", c.Session.Store),
		})
	}
	if c.Session.TTLSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "session.ttl_seconds",
			Message: fmt.Sprintf("ttl_seconds must be positive, got %d", c.Session.TTLSeconds),
		})
	}
	return errs
}

func (c *Config) validateHistory() ValidationErrors {
	var errs ValidationErrors
	switch strings.ToLower(c.History.Driver) {
	case "none":
	case "sqlite", "postgres", "mysql":
		if c.History.DSN == "" {
			errs = append(errs, ValidationError{
				Field:   "history.dsn",
				Message: fmt.Sprintf("dsn is required for %s history driver", c.History.Driver),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "history.driver",
			Message: fmt.Sprintf("unsupported history driver %q", c.History.Driver),
		})
	}
	return errs
}
