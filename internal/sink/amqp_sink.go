package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/chtzvt/tablemapper/internal/secrets"
	amqp "github.com/rabbitmq/amqp091-go"
)

const HeaderChunkName = "chunk-name"

// publisher sends one message per chunk.
type publisher interface {
	publish(ctx context.Context, msg amqp.Publishing) error
	close() error
}

type channelPublisher struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

func (c channelPublisher) publish(ctx context.Context, msg amqp.Publishing) error {
	return c.ch.PublishWithContext(ctx, c.exchange, c.routingKey, false, false, msg)
}

func (c channelPublisher) close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}

// AMQPSink publishes each chunk as one persistent message. With no exchange
// set it declares a durable queue and publishes to it directly.
type AMQPSink struct {
	url         string
	exchange    string
	routingKey  string
	contentType string

	connect func() (publisher, error)

	mu     sync.Mutex
	pub    publisher
	closed bool
}

func NewAMQPSink(opts map[string]interface{}, store secrets.Store) (Sink, error) {
	u, _ := opts["url"].(string)
	if u == "" {
		host, _ := opts["host"].(string)
		if host == "" {
			return nil, errors.New("amqp sink requires 'url' or 'host' option")
		}
		user := stringOpt(opts, "username", "guest")
		pass := optionalSecret(store, opts, "password_secret", "AMQP_PASSWORD")
		if pass == "" && user == "guest" {
			pass = "guest"
		}
		au := url.URL{
			Scheme: "amqp",
			User:   url.UserPassword(user, pass),
			Host:   net.JoinHostPort(host, strconv.Itoa(toInt(opts["port"], 5672))),
			Path:   stringOpt(opts, "vhost", "/"),
		}
		u = au.String()
	}
	exchange, _ := opts["exchange"].(string)
	key, _ := opts["routing_key"].(string)
	if key == "" {
		key, _ = opts["queue"].(string)
	}
	if exchange == "" && key == "" {
		return nil, errors.New("amqp sink requires 'queue' or 'exchange' option")
	}
	s := &AMQPSink{
		url:         u,
		exchange:    exchange,
		routingKey:  key,
		contentType: stringOpt(opts, "content_type", "application/octet-stream"),
	}
	s.connect = s.dial
	return s, nil
}

func (s *AMQPSink) dial() (publisher, error) {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if s.exchange == "" {
		if _, err := ch.QueueDeclare(s.routingKey, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", s.routingKey, err)
		}
	}
	return channelPublisher{conn: conn, ch: ch, exchange: s.exchange, routingKey: s.routingKey}, nil
}

func (s *AMQPSink) Open(ctx context.Context, name string) (SinkWriter, error) {
	pub, err := s.publisher()
	if err != nil {
		return nil, err
	}
	return newBufferWriter(func(payload []byte) error {
		msg := amqp.Publishing{
			ContentType:  s.contentType,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{HeaderChunkName: name},
			Body:         payload,
		}
		if err := pub.publish(ctx, msg); err != nil {
			return fmt.Errorf("publish chunk %s: %w", name, err)
		}
		return nil
	}), nil
}

func (s *AMQPSink) publisher() (publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSinkClosed
	}
	if s.pub == nil {
		pub, err := s.connect()
		if err != nil {
			return nil, err
		}
		s.pub = pub
	}
	return s.pub, nil
}

// Close closes the channel and then the connection.
func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.pub == nil {
		return nil
	}
	err := s.pub.close()
	s.pub = nil
	return err
}

func init() {
	Register("amqp", NewAMQPSink)
}
