package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Channel delivers operator alerts.
type Channel interface {
	// SendText sends a plain text message.
	SendText(ctx context.Context, text string) error

	// SendPhoto sends an image with a caption.
	SendPhoto(ctx context.Context, photo []byte, caption string) error

	// SendDocument sends a file with a caption.
	SendDocument(ctx context.Context, data []byte, filename, caption string) error
}

// Console writes alerts to a writer. Attachments are noted by name and size.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a console channel writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// SendText implements Channel.
func (c *Console) SendText(_ context.Context, text string) error {
	return c.printf("[notify] %s\n", text)
}

// SendPhoto implements Channel.
func (c *Console) SendPhoto(_ context.Context, photo []byte, caption string) error {
	return c.printf("[notify] photo (%d bytes): %s\n", len(photo), caption)
}

// SendDocument implements Channel.
func (c *Console) SendDocument(_ context.Context, data []byte, filename, caption string) error {
	return c.printf("[notify] document %s (%d bytes): %s\n", filename, len(data), caption)
}

func (c *Console) printf(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, format, args...)
	return err
}

// Multi sends every alert to all of its channels.
// An empty Multi discards alerts.
type Multi []Channel

// SendText implements Channel.
func (m Multi) SendText(ctx context.Context, text string) error {
	return m.each(func(c Channel) error { return c.SendText(ctx, text) })
}

// SendPhoto implements Channel.
func (m Multi) SendPhoto(ctx context.Context, photo []byte, caption string) error {
	return m.each(func(c Channel) error { return c.SendPhoto(ctx, photo, caption) })
}

// SendDocument implements Channel.
func (m Multi) SendDocument(ctx context.Context, data []byte, filename, caption string) error {
	return m.each(func(c Channel) error { return c.SendDocument(ctx, data, filename, caption) })
}

// each calls fn on every channel and joins the failures.
func (m Multi) each(fn func(Channel) error) error {
	var errs []error
	for _, c := range m {
		if err := fn(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
