package encode

import (
	"context"
	"fmt"
)

// MaxInFlight caps how many submitted frames may await encoded output before
// the producer must pause.
const MaxInFlight = 120

// Controller wraps a VideoEncoder with an in-flight frame budget. Callers
// obtain capacity with WaitCapacity before each Encode; capacity is returned
// when the corresponding chunk arrives. It attaches the last seen decoder
// configuration to the first chunk handed downstream; a configuration the
// encoder only yields at flush time is returned from Flush so the container
// side can retro-attach it before muxing.
type Controller struct {
	enc     VideoEncoder
	slots   chan struct{}
	config  *DecoderConfig
	first   bool
	onChunk func(Chunk)
}

// NewController wraps enc. onChunk receives every chunk in arrival order.
func NewController(enc VideoEncoder, onChunk func(Chunk)) *Controller {
	return &Controller{
		enc:     enc,
		slots:   make(chan struct{}, MaxInFlight),
		first:   true,
		onChunk: onChunk,
	}
}

// Configure forwards to the wrapped encoder, routing its chunk stream through
// the controller.
func (c *Controller) Configure(ctx context.Context, s Settings) error {
	s.OnChunk = c.handleChunk
	return c.enc.Configure(ctx, s)
}

func (c *Controller) handleChunk(chunk Chunk) {
	// Return capacity before forwarding so a slow consumer cannot wedge the
	// producer behind a full budget.
	select {
	case <-c.slots:
	default:
	}
	if chunk.Config != nil {
		c.config = chunk.Config
	}
	if c.first {
		c.first = false
		if chunk.Config == nil {
			chunk.Config = c.config
		}
	}
	c.onChunk(chunk)
}

// WaitCapacity blocks until the in-flight count is below the budget or ctx is
// cancelled.
func (c *Controller) WaitCapacity(ctx context.Context) error {
	select {
	case c.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Encode submits a frame. WaitCapacity must have been called for it.
func (c *Controller) Encode(f Frame) error {
	if err := c.enc.Encode(f); err != nil {
		select {
		case <-c.slots:
		default:
		}
		return err
	}
	return nil
}

// Flush drains the wrapped encoder. Any chunks it returns directly are
// forwarded through the chunk handler so downstream sees one ordered stream.
func (c *Controller) Flush(ctx context.Context) (*DecoderConfig, error) {
	chunks, cfg, err := c.enc.Flush(ctx)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		c.handleChunk(chunk)
	}
	if cfg == nil {
		cfg = c.config
	}
	if cfg == nil {
		return nil, fmt.Errorf("encode: flush produced no decoder configuration")
	}
	return cfg, nil
}

// Close tears down the wrapped encoder.
func (c *Controller) Close() error {
	return c.enc.Close()
}
