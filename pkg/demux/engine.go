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

package demux

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kelindar/bitmap"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/layers"
	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

// sweepInterval limits how often Push looks for stale sessions
const sweepInterval = time.Second

// ProductHandler receives every completed product synchronously from Push
type ProductHandler interface {
	HandleProduct(p *Product) error
}

// BuildingImage is a copy of an image product under reassembly
type BuildingImage struct {
	VCID     uint8
	Name     string
	Header   layers.XRITHeader
	Data     []byte
	Length   uint64
	Received uint64
}

// Engine demultiplexes VCDU frames into xRIT files
type Engine struct {
	mu        sync.Mutex
	channels  map[uint8]*Channel
	ignore    bitmap.Bitmap
	timeout   time.Duration
	lastSweep time.Time
	now       func() time.Time

	registry *status.Registry
	handler  ProductHandler

	ready   atomic.Bool
	stopped atomic.Bool
}

func NewEngine(cfg *config.Config, registry *status.Registry, handler ProductHandler) *Engine {
	e := &Engine{
		channels: make(map[uint8]*Channel),
		timeout:  cfg.Rx.SessionTimeout,
		now:      time.Now,
		registry: registry,
		handler:  handler,
	}
	if e.timeout <= 0 {
		e.timeout = config.DefaultSessionTimeout
	}
	for _, vcid := range cfg.Output.IgnoreVCIDs {
		e.ignore.Set(uint32(vcid))
	}
	e.lastSweep = e.now()
	e.ready.Store(true)
	return e
}

// Status gives read access to the registry updated by the engine
func (e *Engine) Status() *status.Registry {
	return e.registry
}

func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Stop makes every following Push fail. Products under construction are left incomplete.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	e.ready.Store(false)
	log.Info("Demultiplexer stopped")
}

// Push processes one frame
func (e *Engine) Push(frame []byte) error {
	if e.stopped.Load() {
		return ErrStopped
	}
	vcdu, mpdu, err := DecodeFrame(frame)
	if err != nil {
		e.registry.CountInvalid()
		log.Debug("Skipping frame: %s", err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.SetCurrentVCID(int(vcdu.VCID))
	e.registry.CountFrame()
	if vcdu.IsFill() {
		e.registry.CountFill()
		return nil
	}
	if e.ignore.Contains(uint32(vcdu.VCID)) {
		e.registry.CountIgnored()
		return nil
	}

	ch := e.channel(vcdu.VCID)
	last := ch.LastCounter
	if !ch.Continuous(vcdu.Counter) {
		log.Warning("[VCID %d] Frame gap: counter %d after %d", vcdu.VCID, vcdu.Counter, last)
		e.registry.CountGap()
		ch.Reassembler.Abandon(ReasonGap)
		ch.Extractor.Reset()
	}

	ch.Extractor.Feed(mpdu.FirstHeaderPointer, mpdu.Payload)
	for {
		p, ok := ch.Extractor.Next()
		if !ok {
			break
		}
		e.handlePacket(ch, p)
	}
	if active := ch.Reassembler.Active(); active != nil {
		e.registry.SetProgress(progress(active))
	}

	if now := e.now(); now.Sub(e.lastSweep) >= sweepInterval {
		e.sweep(now)
	}
	return nil
}

func (e *Engine) channel(vcid uint8) *Channel {
	ch, ok := e.channels[vcid]
	if !ok {
		log.Debug("[VCID %d] New channel", vcid)
		ch = NewChannel(vcid, e.abandoned)
		ch.Reassembler.now = e.now
		e.channels[vcid] = ch
	}
	return ch
}

func (e *Engine) handlePacket(ch *Channel, p *layers.CPPDULayer) {
	e.registry.CountPacket()
	prod, err := ch.Reassembler.Handle(p)
	if err != nil {
		var crcErr ErrCRC
		switch {
		case errors.Is(err, ErrNoActiveProduct):
			log.Debug("[VCID %d] Packet %d of APID %d without file header", ch.VCID, p.Counter, p.APID)
		case errors.As(err, &crcErr):
			e.registry.CountCRCError()
			log.Warning("[VCID %d] %s", ch.VCID, err)
		default:
			log.Warning("[VCID %d] %s", ch.VCID, err)
		}
		return
	}
	if prod == nil {
		return
	}

	e.registry.ClearProgress(int(prod.VCID))
	e.registry.CountCompleted()
	log.Info("[VCID %d] Completed %s (%d bytes)", prod.VCID, prod.Name(), prod.Length)
	if e.handler == nil {
		return
	}
	if err := e.handler.HandleProduct(prod); err != nil {
		log.Error("[VCID %d] Failed to save %s: %s", prod.VCID, prod.Name(), err)
	}
}

func (e *Engine) abandoned(p *Product) {
	log.Warning("[VCID %d] Abandoned %s at %d of %d bytes: %s", p.VCID, p.Name(), p.Received(), p.Length, p.Reason)
	e.registry.ClearProgress(int(p.VCID))
	e.registry.SetAbandoned(status.Abandonment{
		VCID:     int(p.VCID),
		Name:     p.Name(),
		Reason:   string(p.Reason),
		Received: p.Received(),
		Length:   p.Length,
		Time:     p.Updated,
	})
}

func progress(p *Product) status.Progress {
	return status.Progress{
		VCID:     int(p.VCID),
		Name:     p.Name(),
		Received: p.Received(),
		Length:   p.Length,
		Percent:  p.Percent(),
		Started:  p.Created,
		Updated:  p.Updated,
	}
}

// Sweep abandons products which have not grown for longer than the session timeout
func (e *Engine) Sweep(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sweep(now)
}

func (e *Engine) sweep(now time.Time) {
	e.lastSweep = now
	for _, ch := range e.channels {
		if ch.Reassembler.Stale(now, e.timeout) {
			ch.Reassembler.Abandon(ReasonTimeout)
		}
	}
}

// AbandonAll drops every product under construction
func (e *Engine) AbandonAll(reason Reason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.channels {
		ch.Reassembler.Abandon(reason)
		ch.Extractor.Reset()
	}
}

// Complete reports whether no product is under construction
func (e *Engine) Complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.channels {
		if ch.Reassembler.Active() != nil {
			return false
		}
	}
	return true
}

// BuildingImages copies every image product under construction whose headers are known
func (e *Engine) BuildingImages() []BuildingImage {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []BuildingImage
	for _, ch := range e.channels {
		p := ch.Reassembler.Active()
		if p == nil || p.Header == nil || p.Header.FileType != layers.FileTypeImage {
			continue
		}
		data := make([]byte, len(p.Data))
		copy(data, p.Data)
		out = append(out, BuildingImage{
			VCID:     p.VCID,
			Name:     p.Name(),
			Header:   *p.Header,
			Data:     data,
			Length:   p.Length,
			Received: p.Received(),
		})
	}
	return out
}
