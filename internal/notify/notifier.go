package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"hydroponics_controller/internal/logger"
	"hydroponics_controller/internal/metrics"
	"hydroponics_controller/internal/models"
)

const (
	DefaultQueueSize       = 256
	DefaultBreakerFailures = 5
	DefaultBreakerOpen     = 30 * time.Second
)

// NotifierConfig tunes the dispatcher.
type NotifierConfig struct {
	TopicPrefix     string
	QueueSize       int
	BreakerFailures uint32
	BreakerOpen     time.Duration
}

type outbound struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// Notifier queues messages and publishes them from its own goroutine. When
// the broker keeps failing, a circuit breaker sheds publishes until it has
// had time to recover.
type Notifier struct {
	pub    Publisher
	prefix string
	queue  chan outbound
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger
	now    func() time.Time
}

func NewNotifier(pub Publisher, cfg NotifierConfig, log *logger.Logger) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = DefaultBreakerOpen
	}
	fails := cfg.BreakerFailures

	n := &Notifier{
		pub:    pub,
		prefix: cfg.TopicPrefix,
		queue:  make(chan outbound, cfg.QueueSize),
		log:    log,
		now:    time.Now,
	}
	n.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-publish",
		Timeout: cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warnw("mqtt_breaker_state", "from", from.String(), "to", to.String())
			}
		},
	})
	return n
}

// Events enqueues device events. It never blocks; events that do not fit are
// dropped and counted.
func (n *Notifier) Events(events []models.DeviceEvent) {
	for _, e := range events {
		payload, err := FormatEvent(e)
		if err != nil {
			n.warn("mqtt_format_failed", err)
			continue
		}
		qos := byte(0)
		if e.Type == models.EventAlarmRaised || e.Type == models.EventAlarmCleared {
			qos = 1
		}
		n.enqueue(outbound{topic: EventTopic(n.prefix, e.Type), payload: payload, qos: qos})
	}
}

// System enqueues a retained lifecycle message.
func (n *Notifier) System(event, reason string) {
	payload, err := FormatSystem(event, reason, n.now())
	if err != nil {
		n.warn("mqtt_format_failed", err)
		return
	}
	n.enqueue(outbound{topic: SystemTopic(n.prefix), payload: payload, qos: 1, retained: true})
}

func (n *Notifier) enqueue(m outbound) {
	select {
	case n.queue <- m:
	default:
		metrics.NotifyDropped.Inc()
		if n.log != nil {
			n.log.Warnw("mqtt_queue_full", "topic", m.topic)
		}
	}
}

// Run publishes queued messages until ctx is canceled, then flushes whatever
// is still queued and closes the publisher.
func (n *Notifier) Run(ctx context.Context) {
	defer func() {
		if err := n.pub.Close(); err != nil {
			n.warn("mqtt_close_failed", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			n.flush()
			return
		case m := <-n.queue:
			n.send(m)
		}
	}
}

func (n *Notifier) flush() {
	for {
		select {
		case m := <-n.queue:
			n.send(m)
		default:
			return
		}
	}
}

func (n *Notifier) send(m outbound) {
	_, err := n.cb.Execute(func() (interface{}, error) {
		return nil, n.pub.Publish(m.topic, m.payload, m.qos, m.retained)
	})
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.NotifyDropped.Inc()
	default:
		if n.log != nil {
			n.log.Warnw("mqtt_publish_failed", "topic", m.topic, "error", err)
		}
	}
}

func (n *Notifier) warn(msg string, err error) {
	if n.log != nil {
		n.log.Warnw(msg, "error", err)
	}
}
