// Package remote talks to the knolstudy HTTP API. Client implements both
// study.CardStore and videoquiz.QuizStore.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

// Client is an API client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     *zap.Logger
}

// New returns a client for the API at baseURL.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// FetchDue returns the deck's due cards.
func (c *Client) FetchDue(ctx context.Context, deckID string) ([]domain.Flashcard, error) {
	var cards []domain.Flashcard
	err := c.do(ctx, http.MethodGet, "/api/decks/"+url.PathEscape(deckID)+"/due", nil, &cards)
	return cards, err
}

// SubmitReview records a judgment for a card.
func (c *Client) SubmitReview(ctx context.Context, cardID string, d domain.Difficulty) error {
	body := map[string]domain.Difficulty{"difficulty": d}
	return c.do(ctx, http.MethodPost, "/api/cards/"+url.PathEscape(cardID)+"/review", body, nil)
}

// FetchForLesson returns the lesson's quizzes.
func (c *Client) FetchForLesson(ctx context.Context, lessonID string) ([]domain.VideoQuiz, error) {
	var quizzes []domain.VideoQuiz
	err := c.do(ctx, http.MethodGet, "/api/lessons/"+url.PathEscape(lessonID)+"/quizzes", nil, &quizzes)
	return quizzes, err
}

// SubmitAnswer sends an answer and returns the server's verdict.
func (c *Client) SubmitAnswer(ctx context.Context, quizID string, answer, timeSpent int) (domain.QuizAnswerResult, error) {
	body := map[string]int{"answer": answer, "timeSpent": timeSpent}
	var res domain.QuizAnswerResult
	err := c.do(ctx, http.MethodPost, "/api/quizzes/"+url.PathEscape(quizID)+"/answer", body, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request for %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &apiErr) != nil {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return nil
}
