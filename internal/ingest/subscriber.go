package ingest

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-ventilation-system/internal/domain"
)

// Subscriber decodes uplinks from the configured routes into a bounded queue
// of fragments. Messages that cannot be queued within the enqueue timeout are
// dropped so the paho callback never blocks for long.
type Subscriber struct {
	routes         map[string][]string
	loc            *time.Location
	queue          chan domain.Fragment
	enqueueTimeout time.Duration
	qos            byte
	dropped        atomic.Int64
}

func NewSubscriber(routes []Route, loc *time.Location, queueSize int) *Subscriber {
	if loc == nil {
		loc = time.UTC
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	m := make(map[string][]string, len(routes))
	for _, r := range routes {
		m[r.Topic] = r.Fields
	}
	return &Subscriber{
		routes:         m,
		loc:            loc,
		queue:          make(chan domain.Fragment, queueSize),
		enqueueTimeout: time.Second,
		qos:            1,
	}
}

func (s *Subscriber) Queue() <-chan domain.Fragment { return s.queue }

func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// SubscribeAll subscribes every route topic on c. Meant for the OnConnect handler.
func (s *Subscriber) SubscribeAll(c mqtt.Client) error {
	var errs []error
	for topic := range s.routes {
		token := c.Subscribe(topic, s.qos, s.Handle)
		if !token.WaitTimeout(10 * time.Second) {
			errs = append(errs, fmt.Errorf("subscribe %s: timeout", topic))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", topic, err))
			continue
		}
		log.Info().Str("topic", topic).Msg("subscribed")
	}
	return errors.Join(errs...)
}

// Handle is the paho message callback.
func (s *Subscriber) Handle(_ mqtt.Client, msg mqtt.Message) {
	fields, ok := s.routes[msg.Topic()]
	if !ok {
		log.Debug().Str("topic", msg.Topic()).Msg("message on unrouted topic")
		return
	}
	frag, err := Decode(msg.Topic(), msg.Payload(), fields, s.loc)
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("invalid uplink")
		return
	}

	select {
	case s.queue <- frag:
	case <-time.After(s.enqueueTimeout):
		n := s.dropped.Add(1)
		log.Warn().Str("topic", msg.Topic()).Int64("dropped", n).Msg("fragment queue full, dropping message")
	}
}
