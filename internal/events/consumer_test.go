package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
)

type fakeInvalidator struct {
	mu     sync.Mutex
	paths  []string
	layers []string
}

func (f *fakeInvalidator) Invalidate(paths ...string) {
	f.mu.Lock()
	f.paths = append(f.paths, paths...)
	f.mu.Unlock()
}

func (f *fakeInvalidator) InvalidateLayer(l output.Layout) int {
	f.mu.Lock()
	f.layers = append(f.layers, l.Prefix)
	f.mu.Unlock()
	return 1
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "cells" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func message(t *testing.T, off int64, ev Event) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return &sarama.ConsumerMessage{Topic: "cells", Offset: off, Value: b}
}

func TestConsumer_InvalidatesWrittenObjects(t *testing.T) {
	inv := &fakeInvalidator{}
	c := NewConsumer(ConsumerConfig{Topic: "cells", GroupID: "g"}, nil, inv)
	g := &groupHandler{process: c.ProcessOne}
	s := &sess{ctx: t.Context()}

	ch := make(chan *sarama.ConsumerMessage, 4)
	ch <- message(t, 1, Event{Layer: "roads", Cell: "0_0_0", Status: "compiled", Path: "roads_0_0_0.json"})
	ch <- message(t, 2, Event{Layer: "roads", Cell: "0_0_1", Status: "failed"})
	ch <- &sarama.ConsumerMessage{Topic: "cells", Offset: 3, Value: []byte("{not json")}
	ch <- message(t, 4, Event{Layer: "roads", Status: StatusIndexed, Path: "roads.json"})
	close(ch)

	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 4 || s.marked[0] != 1 || s.marked[3] != 4 {
		t.Fatalf("marked=%v", s.marked)
	}
	if len(inv.paths) != 1 || inv.paths[0] != "roads_0_0_0.json" {
		t.Fatalf("paths=%v", inv.paths)
	}
	if len(inv.layers) != 1 || inv.layers[0] != "roads" {
		t.Fatalf("layers=%v", inv.layers)
	}
}

func TestConsumer_StartNeedsInvalidator(t *testing.T) {
	c := NewConsumer(ConsumerConfig{}, nil, nil)
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("Start without an invalidator should fail")
	}
}
