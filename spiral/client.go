package spiral

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/justapithecus/spiral/internal/metrics"
)

// -----------------------------------------------------------------------------
// Client Options
// -----------------------------------------------------------------------------

type clientConfig struct {
	options    *Options
	compressor Compressor
	logger     zerolog.Logger
	metrics    *metrics.Recorder
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

// WithOptions sets the validated option set. The client reads the prefix and
// compression options from it.
func WithOptions(o *Options) ClientOption {
	return func(cfg *clientConfig) error {
		if o == nil {
			return errors.New("options must not be nil")
		}
		cfg.options = o
		return nil
	}
}

// WithCompressor sets the body compressor, overriding the compression option.
func WithCompressor(c Compressor) ClientOption {
	return func(cfg *clientConfig) error {
		if c == nil {
			return errors.New("compressor must not be nil")
		}
		cfg.compressor = c
		return nil
	}
}

// WithLogger sets the client logger. The default discards everything.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithMetrics sets the metrics recorder. The default records nothing.
func WithMetrics(r *metrics.Recorder) ClientOption {
	return func(cfg *clientConfig) error {
		cfg.metrics = r
		return nil
	}
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Receipt describes a completed Send.
type Receipt struct {
	// Key is the full object key, including prefix and compressor extension.
	Key string

	// Size is the number of bytes transmitted after compression.
	Size int64

	// Compressor is the name of the compressor applied to the body.
	Compressor string
}

// Client sends and fetches stream bodies through a Store.
//
// A Client is safe for concurrent use if its Store is. Bodies are not:
// callers must not share a body stream between concurrent sends.
type Client struct {
	store      Store
	options    *Options
	compressor Compressor
	prefix     string
	logger     zerolog.Logger
	metrics    *metrics.Recorder
}

// NewClient creates a Client with documented defaults.
//
// Default behavior:
//   - Options: DefaultOptions() (no prefix, noop compression)
//   - Logger: disabled
//   - Metrics: disabled
func NewClient(factory StoreFactory, opts ...ClientOption) (*Client, error) {
	if factory == nil {
		return nil, errors.New("spiral: store factory is required")
	}

	store, err := factory()
	if err != nil {
		return nil, fmt.Errorf("spiral: store factory failed: %w", err)
	}
	if store == nil {
		return nil, errors.New("spiral: store factory returned nil store")
	}

	cfg := &clientConfig{
		options: DefaultOptions(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("spiral: %w", err)
		}
	}

	compressor := cfg.compressor
	if compressor == nil {
		compressor, err = CompressorByName(cfg.options.Value(OptionCompression))
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		store:      store,
		options:    cfg.options,
		compressor: compressor,
		prefix:     cfg.options.Value(OptionPrefix),
		logger:     cfg.logger,
		metrics:    cfg.metrics,
	}, nil
}

// Options returns the client's option set.
func (c *Client) Options() *Options {
	return c.options
}

// Compressor returns the compressor applied to sent bodies.
func (c *Client) Compressor() Compressor {
	return c.compressor
}

// Key returns the full object key for a caller key.
func (c *Client) Key(key string) string {
	return c.objectKey(key) + c.compressor.Extension()
}

func (c *Client) objectKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return path.Join(c.prefix, strings.TrimPrefix(key, "/"))
}

// Send compresses body and transmits it under key. The whole body is sent
// regardless of its current position.
func (c *Client) Send(ctx context.Context, key string, body Stream) (*Receipt, error) {
	start := time.Now()
	fullKey := c.Key(key)

	receipt, err := c.send(ctx, fullKey, body)
	c.metrics.ObserveRequest("send", err, time.Since(start))
	if err != nil {
		c.logger.Warn().Err(err).Str("key", fullKey).Msg("send failed")
		return nil, err
	}

	c.metrics.ObserveBytes(metrics.DirectionSent, receipt.Size)
	c.logger.Debug().
		Str("key", receipt.Key).
		Int64("size", receipt.Size).
		Str("compressor", receipt.Compressor).
		Dur("elapsed", time.Since(start)).
		Msg("sent body")
	return receipt, nil
}

func (c *Client) send(ctx context.Context, fullKey string, body Stream) (*Receipt, error) {
	payload, err := Compress(body, c.compressor)
	if err != nil {
		return nil, err
	}
	defer closer(payload)()

	size, _ := payload.Size()
	if err := c.store.Put(ctx, fullKey, payload); err != nil {
		return nil, err
	}
	return &Receipt{Key: fullKey, Size: size, Compressor: c.compressor.Name()}, nil
}

// Fetch retrieves the object stored under key and returns its decompressed
// body, positioned at offset zero.
func (c *Client) Fetch(ctx context.Context, key string) (*StringStream, error) {
	start := time.Now()
	fullKey := c.Key(key)

	body, received, err := c.fetch(ctx, fullKey)
	c.metrics.ObserveRequest("fetch", err, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Debug().Str("key", fullKey).Msg("object not found")
		} else {
			c.logger.Warn().Err(err).Str("key", fullKey).Msg("fetch failed")
		}
		return nil, err
	}

	c.metrics.ObserveBytes(metrics.DirectionReceived, received)
	c.logger.Debug().
		Str("key", fullKey).
		Int64("size", received).
		Dur("elapsed", time.Since(start)).
		Msg("fetched body")
	return body, nil
}

func (c *Client) fetch(ctx context.Context, fullKey string) (*StringStream, int64, error) {
	raw, err := c.store.Get(ctx, fullKey)
	if err != nil {
		return nil, 0, err
	}
	defer closer(raw)()

	received, _ := raw.Size()
	body, err := Decompress(raw, c.compressor)
	if err != nil {
		return nil, 0, err
	}
	return body, received, nil
}

// Exists reports whether an object exists under key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.Key(key))
}

// Delete removes the object stored under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.Key(key))
}

// List returns the full object keys under prefix, relative to the store root.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	return c.store.List(ctx, c.objectKey(prefix))
}
