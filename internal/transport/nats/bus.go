package nats

import "github.com/nats-io/nats.go"

// Bus adapts a NATS connection to the publisher interface the repository and
// the chef service emit recipe and settlement events through.
type Bus struct {
	nc *nats.Conn
}

func NewBus(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

func (b *Bus) Publish(topic string, data []byte) error {
	return b.nc.Publish(topic, data)
}
