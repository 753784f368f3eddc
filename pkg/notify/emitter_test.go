/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/products"
)

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
	sent     chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{sent: make(chan struct{}, QueueLength)}
}

func (f *fakePublisher) Publish(topic string, qos byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.sent <- struct{}{} }()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{topic, qos, payload})
	return nil
}

func (f *fakePublisher) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d publishes", i, n)
		}
	}
}

// waitStats polls because counters are updated after Publish returns
func waitStats(t *testing.T, e *Emitter, ok func(Stats) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !ok(e.Stats()) {
		if time.Now().After(deadline) {
			t.Fatalf("stats = %+v", e.Stats())
		}
		time.Sleep(time.Millisecond)
	}
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.MQTT.Topic = "xrit/products/"
	cfg.MQTT.QoS = 1
	return cfg
}

func TestEmitterPublishes(t *testing.T) {
	pub := newFakePublisher()
	e := NewEmitter(testConfig(), pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.ProductSaved(&products.Result{
		Name:     "IMG_FD_001.lrit",
		Category: products.CategoryFD,
		Hash:     "abc",
		Size:     1000,
	})
	pub.wait(t, 1)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	msg := pub.messages[0]
	if msg.topic != "xrit/products/FD" || msg.qos != 1 {
		t.Errorf("published to %s with qos %d", msg.topic, msg.qos)
	}
	var ev Event
	if err := json.Unmarshal(msg.payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Name != "IMG_FD_001.lrit" || ev.Hash != "abc" || ev.ID == "" {
		t.Errorf("event = %+v", ev)
	}
	waitStats(t, e, func(s Stats) bool { return s.Published == 1 })
}

func TestEmitterDropsWhenFull(t *testing.T) {
	e := NewEmitter(testConfig(), newFakePublisher())
	for i := 0; i < QueueLength+5; i++ {
		e.ProductSaved(&products.Result{Name: "ANT.lrit", Category: products.CategoryText})
	}
	if got := e.Stats().Dropped; got != 5 {
		t.Errorf("dropped %d events", got)
	}
}

func TestEmitterCountsErrors(t *testing.T) {
	pub := newFakePublisher()
	pub.err = errors.New("broker down")
	e := NewEmitter(testConfig(), pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.ProductSaved(&products.Result{Name: "ANT.lrit", Category: products.CategoryText})
	pub.wait(t, 1)
	waitStats(t, e, func(s Stats) bool { return s.Errors == 1 && s.Published == 0 })
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL("localhost:1883"); got != "tcp://localhost:1883" {
		t.Error(got)
	}
	if got := brokerURL("ssl://broker:8883"); got != "ssl://broker:8883" {
		t.Error(got)
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	p := NewMQTTPublisher(testConfig())
	var mqttErr ErrMQTT
	if err := p.Publish("x", 0, nil); !errors.As(err, &mqttErr) {
		t.Errorf("got %v", err)
	}
}
