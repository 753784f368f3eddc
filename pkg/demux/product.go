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
)

// MaxProductLength is the largest declared file length accepted
const MaxProductLength = 256 << 20

type State int

const (
	StateBuilding State = iota
	StateComplete
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateComplete:
		return "complete"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Reason tells why a product was abandoned
type Reason string

const (
	ReasonGap        Reason = "frame gap"
	ReasonCRC        Reason = "packet CRC error"
	ReasonSequence   Reason = "packet out of sequence"
	ReasonSuperseded Reason = "superseded by new file header"
	ReasonShort      Reason = "last packet before declared length"
	ReasonTimeout    Reason = "session timeout"
	ReasonEndOfInput Reason = "end of input"
)

// Product is one xRIT file under reassembly
type Product struct {
	VCID uint8
	APID uint16
	// Length is the declared file length in bytes
	Length  uint64
	Header  *layers.XRITHeader
	Data    []byte
	Created time.Time
	Updated time.Time
	State   State
	Reason  Reason

	lastSequence uint16
}

func newProduct(vcid uint8, apid uint16, sequence uint16, length uint64, now time.Time) *Product {
	capacity := length
	// preallocate at most 1 MiB
	if capacity > 1<<20 {
		capacity = 1 << 20
	}
	return &Product{
		VCID:         vcid,
		APID:         apid,
		Length:       length,
		Data:         make([]byte, 0, capacity),
		Created:      now,
		Updated:      now,
		State:        StateBuilding,
		lastSequence: sequence,
	}
}

// Received is the number of bytes accumulated so far
func (p *Product) Received() uint64 {
	return uint64(len(p.Data))
}

func (p *Product) Percent() float64 {
	if p.Length == 0 {
		return 100
	}
	return float64(p.Received()) * 100 / float64(p.Length)
}

// Name is the annotation of the xRIT file, or a placeholder before its headers arrived
func (p *Product) Name() string {
	if p.Header != nil && p.Header.Name != "" {
		return p.Header.Name
	}
	return fmt.Sprintf("VCID%d_APID%d_%s", p.VCID, p.APID, p.Created.UTC().Format("20060102T150405"))
}

func (p *Product) Encrypted() bool {
	return p.Header != nil && p.Header.Encrypted()
}

func (p *Product) KeyIndex() uint16 {
	if p.Header == nil {
		return 0
	}
	return p.Header.KeyIndex
}

// append stores data without going beyond the declared length, the excess is returned
func (p *Product) append(data []byte, now time.Time) int {
	room := p.Length - p.Received()
	excess := 0
	if uint64(len(data)) > room {
		excess = len(data) - int(room)
		data = data[:room]
	}
	p.Data = append(p.Data, data...)
	p.Updated = now
	if p.Header == nil {
		// headers are parsed as soon as the whole header field is here
		if h, err := layers.ParseXRIT(p.Data); err == nil {
			p.Header = h
		}
	}
	return excess
}

func (p *Product) done() bool {
	return p.Received() == p.Length
}
