package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// 支持的接口格式
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	anthropicVersion = "2023-06-01"
)

// ClientConfig 文本生成接口配置
type ClientConfig struct {
	Provider   string
	APIBaseURL string
	APIKey     string
	Model      string
}

// Completer 发送单条 user 消息并返回模型输出的文本
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Client 同时兼容 OpenAI chat/completions 与 Anthropic messages 两种格式
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClient 创建客户端，超时由调用方的 context 控制
func NewClient(config ClientConfig) *Client {
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	config.APIBaseURL = strings.TrimRight(config.APIBaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) endpoint() string {
	if c.config.Provider == ProviderAnthropic {
		return c.config.APIBaseURL + "/v1/messages"
	}
	return c.config.APIBaseURL + "/chat/completions"
}

// Complete 实现 Completer
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:     c.config.Model,
		MaxTokens: maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Provider == ProviderAnthropic {
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("anthropic-version", anthropicVersion)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if c.config.Provider == ProviderAnthropic {
		var out anthropicResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if len(out.Content) == 0 {
			return "", fmt.Errorf("no content blocks returned")
		}
		return out.Content[0].Text, nil
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}
	return out.Choices[0].Message.Content, nil
}
