package observer

import (
	"errors"
	"log/slog"
)

// ErrDropped is returned by ChannelObserver when its buffer is full.
var ErrDropped = errors.New("update dropped: subscriber buffer full")

// Observer receives package updates. Handle is called synchronously during
// Hub.Notify; a returned error or panic is isolated to this observer.
type Observer interface {
	Handle(Update) error
}

// HandlerFunc adapts a function to Observer.
type HandlerFunc func(Update) error

// Handle calls f.
func (f HandlerFunc) Handle(u Update) error {
	return f(u)
}

// ChannelObserver forwards updates to a buffered channel without blocking.
// When the buffer is full the update is dropped and ErrDropped returned.
type ChannelObserver struct {
	ch chan Update
}

// NewChannelObserver creates a ChannelObserver with the given buffer size.
func NewChannelObserver(size int) *ChannelObserver {
	if size <= 0 {
		size = 64
	}
	return &ChannelObserver{ch: make(chan Update, size)}
}

// Handle enqueues u.
func (c *ChannelObserver) Handle(u Update) error {
	select {
	case c.ch <- u:
		return nil
	default:
		return ErrDropped
	}
}

// Updates returns the receive side of the channel.
func (c *ChannelObserver) Updates() <-chan Update {
	return c.ch
}

// LogObserver writes each update to a logger at Info level.
type LogObserver struct {
	Logger *slog.Logger
}

// Handle logs u.
func (l LogObserver) Handle(u Update) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Info("package update", "update", u)
	return nil
}
