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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/products"
)

// QueueLength is the number of events waiting for the broker before new ones are dropped
const QueueLength = 64

type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Event announces a product written to disk
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	VCID        uint8     `json:"vcid"`
	Path        string    `json:"path,omitempty"`
	Image       string    `json:"image,omitempty"`
	Hash        string    `json:"hash"`
	Size        int64     `json:"size"`
	Undecrypted bool      `json:"undecrypted,omitempty"`
	Time        time.Time `json:"time"`
}

func NewEvent(r *products.Result) Event {
	return Event{
		ID:          uuid.NewString(),
		Name:        r.Name,
		Category:    r.Category.String(),
		VCID:        r.VCID,
		Path:        r.Path,
		Image:       r.Image,
		Hash:        r.Hash,
		Size:        r.Size,
		Undecrypted: r.Undecrypted,
		Time:        r.Time,
	}
}

// Emitter publishes product events without ever blocking the materializer
type Emitter struct {
	pub   Publisher
	topic string
	qos   byte

	events chan Event

	mu        sync.Mutex
	published uint64
	dropped   uint64
	errors    uint64
}

func NewEmitter(cfg *config.Config, pub Publisher) *Emitter {
	return &Emitter{
		pub:    pub,
		topic:  strings.TrimSuffix(cfg.MQTT.Topic, "/"),
		qos:    cfg.MQTT.QoS,
		events: make(chan Event, QueueLength),
	}
}

// Topic is where events of category are published
func (e *Emitter) Topic(category string) string {
	return fmt.Sprintf("%s/%s", e.topic, category)
}

// ProductSaved queues an event, it is dropped when the queue is full
func (e *Emitter) ProductSaved(r *products.Result) {
	select {
	case e.events <- NewEvent(r):
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		log.Debug("Event queue full, dropping event for %s", r.Name)
	}
}

// Run publishes queued events until ctx is done
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.publish(ev)
		}
	}
}

func (e *Emitter) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warning("Can not encode event for %s: %s", ev.Name, err)
		return
	}
	topic := e.Topic(ev.Category)
	if err := e.pub.Publish(topic, e.qos, payload); err != nil {
		e.mu.Lock()
		e.errors++
		e.mu.Unlock()
		log.Warning("Can not publish %s to %s: %s", ev.Name, topic, err)
		return
	}
	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	log.Debug("Published %s to %s", ev.Name, topic)
}

type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}

func (e *Emitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Published: e.published,
		Dropped:   e.dropped,
		Errors:    e.errors,
	}
}
