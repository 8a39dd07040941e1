// Package engine provides the HTTP client for the sibling chess-engine
// API. The peer owns the protocol; this client only relays positions and
// settings, and treats peer unavailability as a retryable condition.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/k1rl3s/chessbot/internal/platform/errors"
	"github.com/k1rl3s/chessbot/internal/platform/timeouts"
)

const (
	moveEndpoint       = "/api/chess/move"
	evaluationEndpoint = "/api/chess/evaluation"
	boardEndpoint      = "/api/chess/board"
	limitsEndpoint     = "/api/chess/limits"
	defaultsEndpoint   = "/api/chess/defaults"
)

const defaultRetryAttempts = 3

// Options tunes client timeouts and retry behavior. Zero values fall back
// to the shared timeout constants.
type Options struct {
	// RequestTimeout bounds a single HTTP exchange.
	RequestTimeout time.Duration
	// RetryBackoff is the initial delay between retries of a transient
	// failure; it doubles per attempt up to RetryMaxDelay.
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	// RetryAttempts caps transient retries per call.
	RetryAttempts int
}

func (o Options) normalized() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = timeouts.EngineRequest
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 5 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = defaultRetryAttempts
	}
	return o
}

// Client calls the engine API resolved by its service name on the shared
// network.
type Client struct {
	baseURL string
	client  *http.Client
	options Options
	tracer  trace.Tracer
	logf    func(string, ...any)
}

// NewClient creates an engine client for the given base URL.
func NewClient(baseURL string, client *http.Client, options Options, logf func(string, ...any)) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
		options: options.normalized(),
		tracer:  otel.Tracer("chessbot/engine"),
		logf:    logf,
	}
}

// Move submits the player's move and returns the engine's reply. An
// illegal move is reported as a terminal domain error, never retried.
func (c *Client) Move(ctx context.Context, request MoveRequest) (MoveReply, error) {
	ctx, span := c.tracer.Start(ctx, "engine.move")
	defer span.End()

	body, err := json.Marshal(request)
	if err != nil {
		return MoveReply{}, fmt.Errorf("encode move request: %w", err)
	}

	var reply MoveReply
	err = c.doJSON(ctx, http.MethodPost, moveEndpoint, nil, body, &reply)
	if err != nil {
		span.RecordError(err)
		return MoveReply{}, err
	}
	return reply, nil
}

// Evaluation asks the engine to judge a position.
func (c *Client) Evaluation(ctx context.Context, fen string) (Evaluation, error) {
	ctx, span := c.tracer.Start(ctx, "engine.evaluation")
	defer span.End()

	query := url.Values{}
	query.Set("fen", fen)

	var evaluation Evaluation
	if err := c.doJSON(ctx, http.MethodGet, evaluationEndpoint, query, nil, &evaluation); err != nil {
		span.RecordError(err)
		return Evaluation{}, err
	}
	return evaluation, nil
}

// BoardImage renders the position as a PNG.
func (c *Client) BoardImage(ctx context.Context, request BoardRequest) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "engine.board")
	defer span.End()

	query := url.Values{}
	query.Set("fen", request.FEN)
	query.Set("last_move", request.LastMove)
	query.Set("check", request.CheckSquare)
	query.Set("orientation", request.Orientation)
	query.Set("with_coords", strconv.FormatBool(request.Params.WithCoords))
	query.Set("size", strconv.Itoa(request.Params.Size))
	if request.Params.Colors != "" {
		query.Set("colors", request.Params.Colors)
	}

	image, err := c.doRaw(ctx, http.MethodGet, boardEndpoint, query, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return image, nil
}

// Limits fetches the allowed range for every settings key.
func (c *Client) Limits(ctx context.Context) (Limits, error) {
	var limits Limits
	if err := c.doJSON(ctx, http.MethodGet, limitsEndpoint, nil, nil, &limits); err != nil {
		return nil, err
	}
	return limits, nil
}

// Defaults fetches the engine's recommended settings for new users.
func (c *Client) Defaults(ctx context.Context) (Defaults, error) {
	var defaults Defaults
	if err := c.doJSON(ctx, http.MethodGet, defaultsEndpoint, nil, nil, &defaults); err != nil {
		return Defaults{}, err
	}
	return defaults, nil
}

// Ping probes the engine with a single bounded request.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.EngineProbe)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+limitsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	response, err := c.client.Do(request)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnavailable, "engine ping", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.CodeEngineUnavailable, "engine ping returned "+response.Status)
	}
	return nil
}

// WaitReady blocks until the engine answers or the context ends. Peer
// downtime at startup is an expected condition: the delay doubles up to a
// cap and the wait only stops on context cancellation.
func (c *Client) WaitReady(ctx context.Context) error {
	backoff := c.options.RetryBackoff
	for {
		err := c.Ping(ctx)
		if err == nil {
			if c.logf != nil {
				c.logf("engine API is ready")
			}
			return nil
		}
		if c.logf != nil {
			c.logf("waiting for engine API: %v", err)
		}

		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.CodeEngineUnavailable, "wait for engine", ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < c.options.RetryMaxDelay {
			backoff *= 2
			if backoff > c.options.RetryMaxDelay {
				backoff = c.options.RetryMaxDelay
			}
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, query url.Values, body []byte, target any) error {
	payload, err := c.doRaw(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineBadReply, "decode engine response", err)
	}
	return nil
}

// doRaw performs one HTTP exchange with bounded per-attempt timeouts,
// retrying transient failures with doubling backoff. Client errors from
// the peer are terminal for the attempt.
func (c *Client) doRaw(ctx context.Context, method, endpoint string, query url.Values, body []byte) ([]byte, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	backoff := c.options.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < c.options.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(apperrors.CodeEngineUnavailable, "engine request", ctx.Err())
			case <-time.After(backoff):
			}
			if backoff < c.options.RetryMaxDelay {
				backoff *= 2
				if backoff > c.options.RetryMaxDelay {
					backoff = c.options.RetryMaxDelay
				}
			}
			if c.logf != nil {
				c.logf("retrying engine request %s: %v", endpoint, lastErr)
			}
		}

		payload, retryable, err := c.attempt(ctx, method, target, body)
		if err == nil {
			return payload, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, target string, body []byte) ([]byte, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.options.RequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		return nil, false, fmt.Errorf("build engine request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, true, apperrors.Wrap(apperrors.CodeEngineUnavailable, "engine request", err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
	case response.StatusCode >= http.StatusInternalServerError:
		return nil, true, apperrors.New(apperrors.CodeEngineUnavailable, "engine returned "+response.Status)
	case response.StatusCode == http.StatusBadRequest:
		return nil, false, apperrors.New(apperrors.CodeEngineIllegalMove, "engine rejected request")
	default:
		return nil, false, apperrors.New(apperrors.CodeEngineBadReply, "engine returned "+response.Status)
	}

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, true, apperrors.Wrap(apperrors.CodeEngineUnavailable, "read engine response", err)
	}
	return payload, false, nil
}
