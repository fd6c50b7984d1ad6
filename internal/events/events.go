// Package events publishes cell completion events to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// StatusIndexed marks the event sent once a run has rewritten the layer
// root and its index pages. Path names the root.
const StatusIndexed = "indexed"

type Event struct {
	RunID      string    `json:"run_id"`
	Layer      string    `json:"layer"`
	Cell       string    `json:"cell"`
	Level      int       `json:"level"`
	Status     string    `json:"status"`
	Path       string    `json:"path,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	TS         time.Time `json:"ts"`
}

// Publisher queues events and hands them to an async producer. Publish
// never blocks: when the queue is full the event is dropped.
type Publisher struct {
	topic   string
	log     *slog.Logger
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errsWG  sync.WaitGroup

	mu      sync.Mutex
	dropped int
	failed  int
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return newPublisher(prod, topic, queueSize, log), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("events: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Layer + "/" + ev.Cell),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	p.errsWG.Add(1)
	go func() {
		defer p.errsWG.Done()
		for err := range p.prod.Errors() {
			if err == nil {
				continue
			}
			p.mu.Lock()
			p.failed++
			p.mu.Unlock()
			p.log.Warn("events: producer error", "err", err)
		}
	}()
	return p
}

func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

// Stats reports dropped and failed deliveries so far.
func (p *Publisher) Stats() (dropped, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped, p.failed
}

// Close flushes queued events and closes the producer.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	err := p.prod.Close()
	p.errsWG.Wait()
	if err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
