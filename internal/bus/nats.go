// internal/bus/nats.go
package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher sends run events somewhere.
type Publisher interface {
	PublishJSON(subject string, v any) error
	Close()
}

type Client struct{ nc *nats.Conn }

func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("parallel-virfinder"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

// Close flushes pending events before disconnecting.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.FlushTimeout(5 * time.Second)
		_ = c.nc.Drain()
	}
}

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// Nop discards every event. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) PublishJSON(string, any) error { return nil }
func (Nop) Close()                        {}
