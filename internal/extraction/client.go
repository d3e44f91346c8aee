package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"visareview/internal"
	"visareview/internal/config"
)

var ErrNoAnswer = errors.New("extraction response has no answer message")

// Client talks to the chat-style document-understanding bot. One request
// carries the text of one passport page and the answer is a JSON object
// with the passport fields.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	BotID          string `json:"bot_id"`
	User           string `json:"user"`
	Query          string `json:"query"`
	Stream         bool   `json:"stream"`
}

type chatMessage struct {
	Role        string `json:"role"`
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type chatResponse struct {
	Code     int           `json:"code"`
	Msg      string        `json:"msg"`
	Messages []chatMessage `json:"messages"`
}

// answerPayload uses the field names the bot is prompted to emit.
type answerPayload struct {
	PassportNumber string `json:"护照号码"`
	Surname        string `json:"拼音姓"`
	GivenName      string `json:"拼音名"`
	Gender         string `json:"性别"`
	BirthDate      string `json:"出生日期"`
	ExpiryDate     string `json:"护照到期日"`
	ChineseName    string `json:"中文姓名"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ExtractTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.ExtractRateLimitRPS),
	}
}

// ExtractPage sends one page of text and returns the normalized record.
// The record is not validated here.
func (c *Client) ExtractPage(ctx context.Context, text string) (internal.ExtractedRecord, error) {
	content, err := c.chat(ctx, text)
	if err != nil {
		return internal.ExtractedRecord{}, err
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &payload); err != nil {
		return internal.ExtractedRecord{}, fmt.Errorf("decode answer: %w", err)
	}

	rec := internal.ExtractedRecord{
		PassportNumber: payload.PassportNumber,
		Surname:        payload.Surname,
		GivenName:      payload.GivenName,
		Gender:         payload.Gender,
		BirthDate:      payload.BirthDate,
		ExpiryDate:     payload.ExpiryDate,
	}
	if name := strings.TrimSpace(payload.ChineseName); name != "" {
		rec.ChineseName = &name
	}
	return NormalizeRecord(rec), nil
}

func (c *Client) chat(ctx context.Context, query string) (string, error) {
	if err := c.cfg.Require("EXTRACT_API_TOKEN", c.cfg.ExtractAPIToken); err != nil {
		return "", err
	}
	if err := c.cfg.Require("EXTRACT_BOT_ID", c.cfg.ExtractBotID); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		ConversationID: "conv_" + uuid.NewString(),
		BotID:          c.cfg.ExtractBotID,
		User:           strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Query:          query,
		Stream:         false,
	})
	if err != nil {
		return "", err
	}

	maxAttempts := c.cfg.ExtractMaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ExtractAPIURL, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.ExtractAPIToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			if attempt < maxAttempts {
				if err := sleepBackoff(ctx, attempt); err != nil {
					return "", err
				}
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < maxAttempts {
				if err := sleepBackoff(ctx, attempt); err != nil {
					return "", err
				}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = fmt.Errorf("extract status %d", resp.StatusCode)
				if err := sleepBackoff(ctx, attempt); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("extract api error: status=%d body=%s", resp.StatusCode, string(respBody))
		}

		var chat chatResponse
		if err := json.Unmarshal(respBody, &chat); err != nil {
			return "", err
		}
		if chat.Code != 0 {
			return "", fmt.Errorf("extract api unsuccessful: code=%d msg=%s", chat.Code, chat.Msg)
		}
		for _, m := range chat.Messages {
			if m.Role == "assistant" && m.Type == "answer" && m.ContentType == "text" && strings.TrimSpace(m.Content) != "" {
				return m.Content, nil
			}
		}
		return "", ErrNoAnswer
	}

	if lastErr == nil {
		lastErr = errors.New("extract request failed")
	}
	return "", lastErr
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
