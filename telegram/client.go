package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"telegram-shop/model"
)

const parseModeHTML = "HTML"

// Client talks to the Bot API over plain HTTPS.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type inlineKeyboard struct {
	InlineKeyboard [][]model.Button `json:"inline_keyboard"`
}

type sendMessageReq struct {
	ChatID      string          `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// SendMessage posts an HTML message, attaching the keyboard when it has rows.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, keyboard [][]model.Button) error {
	req := sendMessageReq{ChatID: chatID, Text: text, ParseMode: parseModeHTML}
	if len(keyboard) > 0 {
		req.ReplyMarkup = &inlineKeyboard{InlineKeyboard: keyboard}
	}
	return errors.Wrapf(c.call(ctx, "sendMessage", req), "send message to %s", chatID)
}

// Send implements service.Sender.
func (c *Client) Send(ctx context.Context, chatID, text string, keyboard [][]model.Button) error {
	return c.SendMessage(ctx, chatID, text, keyboard)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	body := map[string]string{"callback_query_id": callbackID}
	return errors.Wrap(c.call(ctx, "answerCallbackQuery", body), "answer callback")
}

func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return errors.Wrap(c.call(ctx, "setWebhook", map[string]string{"url": url}), "set webhook")
}

func (c *Client) call(ctx context.Context, method string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bot"+c.token+"/"+method, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// the request URL carries the token
		return errors.Errorf("%s: request failed: %s", method, redact(err.Error(), c.token))
	}
	defer resp.Body.Close()

	var out apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Description != "" {
			return errors.Errorf("%s: status %d: %s", method, resp.StatusCode, out.Description)
		}
		return errors.Errorf("%s: status %d", method, resp.StatusCode)
	}
	if decodeErr != nil {
		return errors.Wrapf(decodeErr, "%s: decode response", method)
	}
	if !out.OK {
		return errors.Errorf("%s: %s", method, out.Description)
	}
	return nil
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}
