package visa

import (
	"time"

	bg "github.com/SSSOCPaulCote/blunderguard"
)

const (
	// ErrTransportIO covers any failure on the wire: open, write, read or
	// timeout. Callers match on this to drive their retry logic.
	ErrTransportIO     = bg.Error("transport i/o failure")
	ErrBadAddress      = bg.Error("unparseable resource address")
	ErrNoSuchResource  = bg.Error("no such resource")
	DefaultTimeout     = 2 * time.Second
	DefaultReadTerm    = byte('\r')
	DefaultBaudRate    = 9600
	defaultWriteSuffix = "\r\n"
)

// Resource is an open session to a single instrument. All calls block until
// the transport completes or times out. A Resource is not safe for
// concurrent use.
type Resource interface {
	// Write transmits one command. Fire-and-forget, no response expected.
	Write(cmd string) error
	// Query transmits one command and blocks for a response terminated by
	// the resource's read-termination byte. The terminator is stripped.
	Query(cmd string) (string, error)
	Close() error
}

// ResourceManager enumerates candidate instrument addresses and opens them.
type ResourceManager interface {
	ListResources() ([]string, error)
	OpenResource(addr string, opts ...ResourceOption) (Resource, error)
}

type resourceConfig struct {
	timeout  time.Duration
	readTerm byte
	baudRate int
}

type ResourceOption func(*resourceConfig)

// WithTimeout bounds how long a single read or query may block.
func WithTimeout(d time.Duration) ResourceOption {
	return func(c *resourceConfig) {
		c.timeout = d
	}
}

// WithReadTermination sets the byte that ends an instrument response.
func WithReadTermination(term byte) ResourceOption {
	return func(c *resourceConfig) {
		c.readTerm = term
	}
}

// WithBaudRate sets the serial line speed for ASRL resources and for the
// serial leg of a Prologix GPIB resource.
func WithBaudRate(baud int) ResourceOption {
	return func(c *resourceConfig) {
		c.baudRate = baud
	}
}

func newResourceConfig(opts []ResourceOption) resourceConfig {
	c := resourceConfig{
		timeout:  DefaultTimeout,
		readTerm: DefaultReadTerm,
		baudRate: DefaultBaudRate,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
