package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// TelegramSender calls the Bot API sendMessage method. Rate limits and server
// errors are retried by the underlying client.
type TelegramSender struct {
	baseURL    string
	token      string
	httpClient *retryablehttp.Client
}

func NewTelegramSender(apiURL, token string) *TelegramSender {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &TelegramSender{
		baseURL:    strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: client,
	}
}

func (s *TelegramSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", s.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, s.redact(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	result := gjson.ParseBytes(payload)
	if !result.Get("ok").Bool() {
		description := result.Get("description").String()
		if description == "" {
			description = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("send message to %d: status %d: %s", chatID, resp.StatusCode, description)
	}

	return nil
}

// redact strips the bot token from errors that quote the request URL.
func (s *TelegramSender) redact(err error) error {
	if s.token == "" || !strings.Contains(err.Error(), s.token) {
		return err
	}
	return &redactedError{
		msg: strings.ReplaceAll(err.Error(), s.token, "<redacted>"),
		err: err,
	}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }
