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
	"fmt"
	"time"

	"jinr.ru/greenlab/go-xrit/pkg/layers"
	"jinr.ru/greenlab/go-xrit/pkg/log"
)

// AbandonFunc is called for every product dropped before completion
type AbandonFunc func(p *Product)

// Reassembler collects the packets of one virtual channel into xRIT files.
// At most one product is under construction. A new file header always
// replaces the product being built.
type Reassembler struct {
	vcid      uint8
	active    *Product
	onAbandon AbandonFunc
	now       func() time.Time
}

func NewReassembler(vcid uint8, onAbandon AbandonFunc) *Reassembler {
	return &Reassembler{
		vcid:      vcid,
		onAbandon: onAbandon,
		now:       time.Now,
	}
}

// Active returns the product being built or nil
func (r *Reassembler) Active() *Product {
	return r.active
}

// Handle processes one packet. The completed product is returned when this packet finishes it.
func (r *Reassembler) Handle(p *layers.CPPDULayer) (*Product, error) {
	if p.IsFill() {
		return nil, nil
	}
	if !p.ValidCRC() {
		r.Abandon(ReasonCRC)
		return nil, ErrCRC{APID: p.APID, Counter: p.Counter}
	}

	now := r.now()
	if p.StartsFile() {
		r.Abandon(ReasonSuperseded)

		user := p.UserData()
		tp, err := layers.DecodeTPFileHeader(user)
		if err != nil {
			return nil, err
		}
		length := tp.Bytes()
		if length > MaxProductLength {
			return nil, ErrProductTooLarge{Length: length}
		}
		r.active = newProduct(r.vcid, p.APID, p.Counter, length, now)
		return r.append(p, user[layers.TPFileHeaderLength:], now)
	}

	if r.active == nil {
		return nil, ErrNoActiveProduct
	}
	if p.APID != r.active.APID {
		r.Abandon(ReasonSequence)
		return nil, ErrSequence{What: fmt.Sprintf("APID %d while building APID %d", p.APID, r.active.APID)}
	}
	if expected := layers.NextSequence(r.active.lastSequence); p.Counter != expected {
		r.Abandon(ReasonSequence)
		return nil, ErrSequence{What: fmt.Sprintf("packet %d, expected %d", p.Counter, expected)}
	}
	r.active.lastSequence = p.Counter
	return r.append(p, p.UserData(), now)
}

func (r *Reassembler) append(p *layers.CPPDULayer, data []byte, now time.Time) (*Product, error) {
	prod := r.active
	if excess := prod.append(data, now); excess > 0 {
		log.Debug("[VCID %d] Dropped %d bytes beyond declared length of %s", r.vcid, excess, prod.Name())
	}
	if prod.done() {
		prod.State = StateComplete
		r.active = nil
		return prod, nil
	}
	if p.EndsFile() {
		r.Abandon(ReasonShort)
	}
	return nil, nil
}

// Abandon drops the product being built, if any
func (r *Reassembler) Abandon(reason Reason) {
	if r.active == nil {
		return
	}
	prod := r.active
	r.active = nil
	prod.State = StateAbandoned
	prod.Reason = reason
	if r.onAbandon != nil {
		r.onAbandon(prod)
	}
}

// Stale reports whether the product being built has not grown for longer than timeout
func (r *Reassembler) Stale(now time.Time, timeout time.Duration) bool {
	return r.active != nil && now.Sub(r.active.Updated) > timeout
}
