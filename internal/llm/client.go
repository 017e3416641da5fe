package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Pablo751/dentcb/internal/config"
	"github.com/Pablo751/dentcb/internal/domain"
	"github.com/Pablo751/dentcb/internal/observability"
)

const defaultModel = "gpt-3.5-turbo"

// Client calls an OpenAI compatible chat completion endpoint.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	retry   RetryConfig
	logger  *observability.Logger
}

// NewClient creates a client from the oracle configuration.
func NewClient(cfg config.OracleConfig, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigError("oracle api key is not set (OPENAI_API_KEY or OPENROUTER_API_KEY)", nil)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	transportCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		transportCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}

	return &Client{
		api:     openai.NewClientWithConfig(transportCfg),
		model:   model,
		timeout: cfg.Timeout,
		retry:   retry,
		logger:  logger.WithComponent("oracle"),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single system message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
	}

	var reply string
	attempt := 0
	start := time.Now()

	op := func() error {
		attempt++
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			if !isRetryable(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("response contained no choices"))
		}

		reply = resp.Choices[0].Message.Content
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().
			Int("attempt", attempt).
			Int("max_retries", c.retry.MaxRetries).
			Dur("retry_in", wait).
			Err(err).
			Msg("Oracle call failed, retrying")
	}

	if err := backoff.RetryNotify(op, newBackOff(ctx, c.retry), notify); err != nil {
		return "", domain.APIError(fmt.Sprintf("oracle call failed after %d attempt(s)", attempt), err)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("attempts", attempt).
		Dur("latency", time.Since(start)).
		Msg("Oracle replied")

	return reply, nil
}
