package encode

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeEncoder records frames and lets tests emit chunks by hand.
type fakeEncoder struct {
	settings Settings
	frames   []Frame
	flushOut []Chunk
	flushCfg *DecoderConfig
	closed   bool
}

func (f *fakeEncoder) Configure(_ context.Context, s Settings) error {
	f.settings = s
	return nil
}

func (f *fakeEncoder) Encode(frame Frame) error {
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeEncoder) Flush(context.Context) ([]Chunk, *DecoderConfig, error) {
	return f.flushOut, f.flushCfg, nil
}

func (f *fakeEncoder) Close() error {
	f.closed = true
	return nil
}

func testConfig() *DecoderConfig {
	return &DecoderConfig{Record: []byte{1}, Codec: "avc1.64001F", Width: 640, Height: 360}
}

func TestWaitCapacityBlocksAtBudget(t *testing.T) {
	fake := &fakeEncoder{}
	ctrl := NewController(fake, func(Chunk) {})
	if err := ctrl.Configure(context.Background(), Settings{Width: 2, Height: 2, FrameRate: 30}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < MaxInFlight; i++ {
		if err := ctrl.WaitCapacity(ctx); err != nil {
			t.Fatalf("WaitCapacity %d: %v", i, err)
		}
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := ctrl.WaitCapacity(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("over-budget wait returned %v, want deadline exceeded", err)
	}

	// A chunk arrival frees one slot.
	fake.settings.OnChunk(Chunk{Data: []byte{0}, Config: testConfig()})
	if err := ctrl.WaitCapacity(ctx); err != nil {
		t.Fatalf("WaitCapacity after chunk: %v", err)
	}
}

func TestControllerForwardsChunksInOrder(t *testing.T) {
	fake := &fakeEncoder{}
	var got []Chunk
	ctrl := NewController(fake, func(c Chunk) { got = append(got, c) })
	if err := ctrl.Configure(context.Background(), Settings{Width: 2, Height: 2, FrameRate: 30}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	fake.settings.OnChunk(Chunk{TimestampUs: 0, Config: testConfig()})
	fake.settings.OnChunk(Chunk{TimestampUs: 33_333})

	if len(got) != 2 {
		t.Fatalf("forwarded %d chunks, want 2", len(got))
	}
	if got[0].Config == nil {
		t.Error("first chunk lost its decoder config")
	}
	if got[1].TimestampUs != 33_333 {
		t.Errorf("second chunk timestamp %d", got[1].TimestampUs)
	}
}

func TestControllerAttachesConfigToFirstChunk(t *testing.T) {
	fake := &fakeEncoder{}
	var got []Chunk
	ctrl := NewController(fake, func(c Chunk) { got = append(got, c) })
	if err := ctrl.Configure(context.Background(), Settings{Width: 2, Height: 2, FrameRate: 30}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	// Encoder leaves Config nil on chunks and only reports it at flush.
	fake.flushOut = []Chunk{{TimestampUs: 0, Keyframe: true}, {TimestampUs: 33_333}}
	fake.flushCfg = testConfig()

	cfg, err := ctrl.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if cfg == nil || cfg.Codec != "avc1.64001F" {
		t.Fatalf("flush config = %+v", cfg)
	}
	if len(got) != 2 {
		t.Fatalf("forwarded %d chunks, want 2", len(got))
	}
}

func TestControllerFlushWithoutConfigFails(t *testing.T) {
	fake := &fakeEncoder{}
	ctrl := NewController(fake, func(Chunk) {})
	if err := ctrl.Configure(context.Background(), Settings{Width: 2, Height: 2, FrameRate: 30}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := ctrl.Flush(context.Background()); err == nil {
		t.Fatal("expected error when no decoder config ever appeared")
	}
}
