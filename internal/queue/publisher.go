package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/op/go-logging"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/restaurant-ordering/internal/realtime"
)

var log = logging.MustGetLogger("queue")

const (
	dialTimeout    = 3 * time.Second
	publishTimeout = 2 * time.Second
	redialAfter    = 5 * time.Second
	pendingEvents  = 256
)

// Publisher is a realtime.Notifier that sends every event to a durable
// queue. Notify only enqueues; one goroutine dials lazily and publishes.
// After a failed dial it waits redialAfter before trying again, and events
// arriving meanwhile are dropped.
type Publisher struct {
	url   string
	queue string

	pending chan outgoing
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	running bool

	mu      sync.Mutex
	closed  bool
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
	now     func() time.Time
}

type outgoing struct {
	event string
	pub   amqp.Publishing
}

var _ realtime.Notifier = (*Publisher)(nil)

// NewPublisher starts a publisher for queue at url. Close stops it.
func NewPublisher(url, queue string) *Publisher {
	p := newPublisher(url, queue, pendingEvents)
	p.running = true
	go p.loop()
	return p
}

func newPublisher(url, queue string, buffer int) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{
		url:     url,
		queue:   queue,
		pending: make(chan outgoing, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
}

var (
	errQueueFull = errors.New("publish buffer full")
	errClosed    = errors.New("publisher closed")
)

var errBackoff = errors.New("broker unavailable, waiting before redial")

// channel must be called with p.mu held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.closed {
		return nil, errClosed
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if p.now().Before(p.retryAt) {
		return nil, errBackoff
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		p.retryAt = p.now().Add(redialAfter)
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.retryAt = p.now().Add(redialAfter)
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		p.retryAt = p.now().Add(redialAfter)
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	log.Infof("publisher connected, queue=%s", p.queue)
	p.conn, p.ch = conn, ch
	return ch, nil
}

// reset must be called with p.mu held.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Notify enqueues ev without waiting for the broker. It fails only when the
// event cannot be encoded, the buffer is full or the publisher is closed.
func (p *Publisher) Notify(_ context.Context, ev realtime.Event) error {
	msg, err := NewMessage(ev)
	if err != nil {
		return err
	}
	pub, err := msg.Publishing()
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return fmt.Errorf("queue: publish %s: %w", ev.Name, errClosed)
	default:
	}
	select {
	case p.pending <- outgoing{event: ev.Name, pub: pub}:
		return nil
	default:
		return fmt.Errorf("queue: publish %s: %w", ev.Name, errQueueFull)
	}
}

// loop publishes pending events until Close, then flushes what is left.
func (p *Publisher) loop() {
	defer close(p.stopped)
	for {
		select {
		case out := <-p.pending:
			p.send(out)
		case <-p.done:
			for {
				select {
				case out := <-p.pending:
					p.send(out)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) send(out outgoing) {
	err := p.publish(out.pub)
	switch {
	case err == nil:
	case errors.Is(err, errBackoff):
		log.Debugf("queue: drop %s: %v", out.event, err)
	default:
		log.Warningf("queue: publish %s: %v", out.event, err)
	}
}

// publish sends one message. Errors leave the connection to be rebuilt on
// the next call.
func (p *Publisher) publish(pub amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return err
	}
	return nil
}

// Close stops accepting events, waits for the pending ones when the loop is
// running, and closes the connection.
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.done) })
	if p.running {
		select {
		case <-p.stopped:
		case <-time.After(dialTimeout + publishTimeout):
			log.Warningf("queue: publisher did not drain before close")
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}
