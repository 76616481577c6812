package device_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/echodev/buffer"
	"github.com/tailored-agentic-units/echodev/device"
	"github.com/tailored-agentic-units/echodev/observability"
	"github.com/tailored-agentic-units/echodev/session"
)

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) types() []observability.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]observability.EventType, len(c.events))
	for i, e := range c.events {
		types[i] = e.Type
	}
	return types
}

func newDevice(t *testing.T, capacity int64, opts ...device.Option) (*device.Device, *captureObserver) {
	t.Helper()
	cfg := device.DefaultConfig()
	cfg.Buffer.InitialCapacity = capacity

	obs := &captureObserver{}
	d, err := device.New(&cfg, append([]device.Option{device.WithObserver(obs)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d, obs
}

func open(t *testing.T, d *device.Device) string {
	t.Helper()
	s, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s.ID()
}

func TestNew_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := device.DefaultConfig()
	d, err := device.New(&cfg, device.WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, string(device.EventOpen)) || !strings.Contains(out, s.ID()) {
		t.Errorf("log output = %q, want open event for session %s", out, s.ID())
	}
}

func TestNew_UnknownObserver(t *testing.T) {
	cfg := device.DefaultConfig()
	cfg.Observer = "nonexistent"

	if _, err := device.New(&cfg); err == nil {
		t.Error("expected error for unknown observer")
	}
}

func TestNew_InvalidBuffer(t *testing.T) {
	cfg := device.DefaultConfig()
	cfg.Buffer.InitialCapacity = cfg.Buffer.MaxCapacity + 1

	if _, err := device.New(&cfg); !errors.Is(err, buffer.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestNew_WithStore(t *testing.T) {
	bcfg := buffer.DefaultConfig()
	bcfg.InitialCapacity = 16
	store, err := buffer.New(&bcfg)
	if err != nil {
		t.Fatalf("buffer.New() error = %v", err)
	}

	d, _ := newDevice(t, 4096, device.WithStore(store))
	id := open(t, d)

	out, err := d.Control(context.Background(), id, session.CodeGetCapacity, session.EncodeSize(0))
	if err != nil {
		t.Fatalf("Control() error = %v", err)
	}
	if v, _ := session.DecodeSize(out); v != 16 {
		t.Errorf("GET_CAPACITY = %d, want 16 from injected store", v)
	}
}

func TestDevice_HelloWorld(t *testing.T) {
	ctx := context.Background()
	d, obs := newDevice(t, 4096)
	id := open(t, d)

	n, truncated, err := d.Write(ctx, id, []byte("HELLOWORLD"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 10 || truncated {
		t.Fatalf("Write() = (%d, %v), want (10, false)", n, truncated)
	}

	reader := open(t, d)
	got, err := d.Read(ctx, reader, 20)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "HELLOWORLD" {
		t.Errorf("Read() = %q, want %q", got, "HELLOWORLD")
	}

	got, err = d.Read(ctx, reader, 20)
	if err != nil {
		t.Fatalf("second Read() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("second Read() = %q, want empty", got)
	}

	stats := d.Stats()
	if stats.Opens != 2 || stats.Writes != 1 || stats.Reads != 2 {
		t.Errorf("Stats() = %+v, want 2 opens, 1 write, 2 reads", stats)
	}
	if stats.BytesWritten != 10 || stats.BytesRead != 10 {
		t.Errorf("Stats() bytes = %d written, %d read, want 10 and 10", stats.BytesWritten, stats.BytesRead)
	}

	want := []observability.EventType{
		device.EventOpen, device.EventWrite, device.EventOpen, device.EventRead, device.EventRead,
	}
	events := obs.types()
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestDevice_WriteStagesCopy(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, 64)
	id := open(t, d)

	data := []byte("original")
	if _, _, err := d.Write(ctx, id, data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data[0] = 'X'

	got, _ := d.Read(ctx, open(t, d), 64)
	if string(got) != "original" {
		t.Errorf("Read() = %q, want %q", got, "original")
	}
}

func TestDevice_WriteTruncated(t *testing.T) {
	ctx := context.Background()
	d, obs := newDevice(t, 4096)
	id := open(t, d)

	n, truncated, err := d.Write(ctx, id, bytes.Repeat([]byte("q"), 4097))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 4096 || !truncated {
		t.Errorf("Write() = (%d, %v), want (4096, true)", n, truncated)
	}
	if d.Stats().Truncations != 1 {
		t.Errorf("Stats().Truncations = %d, want 1", d.Stats().Truncations)
	}

	types := obs.types()
	if last := types[len(types)-1]; last != device.EventWriteTruncated {
		t.Errorf("last event = %q, want %q", last, device.EventWriteTruncated)
	}

	if _, _, err := d.Write(ctx, id, []byte("q")); !errors.Is(err, buffer.ErrOutOfSpace) {
		t.Errorf("Write() at capacity error = %v, want ErrOutOfSpace", err)
	}
	if d.Stats().Errors != 1 {
		t.Errorf("Stats().Errors = %d, want 1", d.Stats().Errors)
	}
}

func TestDevice_ControlResize(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, 4096)
	id := open(t, d)
	d.Write(ctx, id, []byte("HELLOWORLD"))

	if _, err := d.Control(ctx, id, session.CodeResize, session.EncodeSize(5)); err != nil {
		t.Fatalf("Control(RESIZE) error = %v", err)
	}

	got, _ := d.Read(ctx, open(t, d), 20)
	if string(got) != "HELLO" {
		t.Errorf("Read() = %q, want %q", got, "HELLO")
	}

	_, err := d.Control(ctx, id, session.CodeResize, session.EncodeSize(2_000_000))
	if !errors.Is(err, buffer.ErrInvalidSize) {
		t.Errorf("Control(RESIZE, 2000000) error = %v, want ErrInvalidSize", err)
	}

	_, err = d.Control(ctx, id, session.Code(500), session.EncodeSize(0))
	if !errors.Is(err, session.ErrUnsupportedOperation) {
		t.Errorf("Control(500) error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestDevice_UnknownSession(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, 64)

	if _, err := d.Read(ctx, "missing", 1); !errors.Is(err, device.ErrSessionNotFound) {
		t.Errorf("Read() error = %v, want ErrSessionNotFound", err)
	}
	if _, _, err := d.Write(ctx, "missing", []byte("x")); !errors.Is(err, device.ErrSessionNotFound) {
		t.Errorf("Write() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := d.Control(ctx, "missing", session.CodeGetLength, session.EncodeSize(0)); !errors.Is(err, device.ErrSessionNotFound) {
		t.Errorf("Control() error = %v, want ErrSessionNotFound", err)
	}
	if err := d.Close(ctx, "missing"); !errors.Is(err, device.ErrSessionNotFound) {
		t.Errorf("Close() error = %v, want ErrSessionNotFound", err)
	}
}

func TestDevice_Close(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, 64)
	id := open(t, d)
	d.Write(ctx, id, []byte("stays"))

	if err := d.Close(ctx, id); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(d.Sessions()) != 0 {
		t.Errorf("Sessions() = %v, want empty", d.Sessions())
	}
	if _, err := d.Lookup(id); !errors.Is(err, device.ErrSessionNotFound) {
		t.Errorf("Lookup() after Close error = %v, want ErrSessionNotFound", err)
	}

	got, _ := d.Read(ctx, open(t, d), 64)
	if string(got) != "stays" {
		t.Errorf("Read() after Close = %q, want %q", got, "stays")
	}
}

func TestDevice_Reopen_ResetsCursor(t *testing.T) {
	ctx := context.Background()
	d, _ := newDevice(t, 64)
	id := open(t, d)
	d.Write(ctx, id, []byte("abc"))
	d.Close(ctx, id)

	id = open(t, d)
	got, _ := d.Read(ctx, id, 64)
	if string(got) != "abc" {
		t.Errorf("Read() after reopen = %q, want %q", got, "abc")
	}
}

func TestDevice_Shutdown(t *testing.T) {
	ctx := context.Background()
	d, obs := newDevice(t, 64)
	id := open(t, d)
	open(t, d)

	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if _, err := d.Open(ctx); !errors.Is(err, device.ErrShutdown) {
		t.Errorf("Open() after Shutdown error = %v, want ErrShutdown", err)
	}
	if _, err := d.Read(ctx, id, 1); !errors.Is(err, device.ErrSessionNotFound) {
		t.Errorf("Read() after Shutdown error = %v, want ErrSessionNotFound", err)
	}
	if err := d.Shutdown(ctx); !errors.Is(err, device.ErrShutdown) {
		t.Errorf("second Shutdown() error = %v, want ErrShutdown", err)
	}
	if d.Stats().Closes != 2 {
		t.Errorf("Stats().Closes = %d, want 2", d.Stats().Closes)
	}

	types := obs.types()
	if last := types[len(types)-1]; last != device.EventShutdown {
		t.Errorf("last event = %q, want %q", last, device.EventShutdown)
	}
}

func TestDevice_Shutdown_RetryAfterInterrupted(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	initial := true
	alloc := func(size int) ([]byte, error) {
		if initial {
			initial = false
			return make([]byte, size), nil
		}
		entered <- struct{}{}
		<-release
		return make([]byte, size), nil
	}

	cfg := buffer.DefaultConfig()
	cfg.InitialCapacity = 64
	store, err := buffer.New(&cfg, buffer.WithAllocator(alloc))
	if err != nil {
		t.Fatalf("buffer.New() error = %v", err)
	}
	d, _ := newDevice(t, 64, device.WithStore(store))

	resized := make(chan error, 1)
	go func() { resized <- store.Resize(ctx, 128) }()
	<-entered

	expired, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(expired); !errors.Is(err, buffer.ErrInterrupted) {
		t.Fatalf("Shutdown() while store busy error = %v, want ErrInterrupted", err)
	}
	if _, err := d.Open(ctx); !errors.Is(err, device.ErrShutdown) {
		t.Errorf("Open() after interrupted Shutdown error = %v, want ErrShutdown", err)
	}

	close(release)
	if err := <-resized; err != nil {
		t.Fatalf("Resize() error = %v", err)
	}

	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("retried Shutdown() error = %v", err)
	}
	if _, err := store.Capacity(ctx); !errors.Is(err, buffer.ErrClosed) {
		t.Errorf("Capacity() after Shutdown error = %v, want ErrClosed", err)
	}
	if err := d.Shutdown(ctx); !errors.Is(err, device.ErrShutdown) {
		t.Errorf("third Shutdown() error = %v, want ErrShutdown", err)
	}
}

func TestDevice_Concurrent_OpenWriteClose(t *testing.T) {
	const n = 50
	d, _ := newDevice(t, n*8)

	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			ctx := context.Background()
			s, err := d.Open(ctx)
			if err != nil {
				t.Errorf("Open() error = %v", err)
				return
			}
			d.Write(ctx, s.ID(), []byte("12345678"))
			d.Read(ctx, s.ID(), 8)
			d.Close(ctx, s.ID())
		}()
	}
	wg.Wait()

	stats := d.Stats()
	if stats.Opens != n || stats.Closes != n {
		t.Errorf("Stats() = %+v, want %d opens and closes", stats, n)
	}
	if len(d.Sessions()) != 0 {
		t.Errorf("Sessions() = %d open, want 0", len(d.Sessions()))
	}
}
