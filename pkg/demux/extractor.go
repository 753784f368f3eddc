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
	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-xrit/pkg/layers"
	"jinr.ru/greenlab/go-xrit/pkg/log"
)

// Extractor cuts the M_PDU packet zones of one virtual channel into CP_PDUs.
// Packets may span any number of frames. After a Reset the extractor
// ignores data until a frame with a first header pointer arrives.
type Extractor struct {
	vcid      uint8
	remainder []byte
	synced    bool
	queue     []*layers.CPPDULayer
	// Dropped counts bytes discarded while resynchronising
	Dropped uint64
}

func NewExtractor(vcid uint8) *Extractor {
	return &Extractor{vcid: vcid}
}

// Feed adds the packet zone of the next frame
func (x *Extractor) Feed(fhp uint16, payload []byte) {
	if fhp == layers.NoPacketStart {
		if x.synced {
			x.remainder = append(x.remainder, payload...)
			x.split()
		}
		return
	}

	if int(fhp) > len(payload) {
		log.Warning("[VCID %d] First header pointer %d is beyond the packet zone", x.vcid, fhp)
		x.Reset()
		return
	}

	if x.synced && len(x.remainder) > 0 {
		x.remainder = append(x.remainder, payload[:fhp]...)
		x.split()
		if len(x.remainder) > 0 {
			log.Debug("[VCID %d] Dropping %d bytes of incomplete packet", x.vcid, len(x.remainder))
			x.Dropped += uint64(len(x.remainder))
		}
	} else if !x.synced && fhp > 0 {
		x.Dropped += uint64(fhp)
	}

	x.remainder = append(x.remainder[:0], payload[fhp:]...)
	x.synced = true
	x.split()
}

// split moves every complete packet from the remainder to the queue
func (x *Extractor) split() {
	offset := 0
	for len(x.remainder)-offset >= layers.CPPDUHeaderLength {
		n := layers.PacketLength(x.remainder[offset:])
		if len(x.remainder)-offset < n {
			break
		}
		data := make([]byte, n)
		copy(data, x.remainder[offset:offset+n])
		offset += n

		p := &layers.CPPDULayer{}
		if err := p.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			log.Debug("[VCID %d] %s", x.vcid, err)
			continue
		}
		x.queue = append(x.queue, p)
	}
	if offset > 0 {
		x.remainder = append(x.remainder[:0], x.remainder[offset:]...)
	}
}

// Next returns the next complete packet
func (x *Extractor) Next() (*layers.CPPDULayer, bool) {
	if len(x.queue) == 0 {
		return nil, false
	}
	p := x.queue[0]
	x.queue[0] = nil
	x.queue = x.queue[1:]
	return p, true
}

// Reset drops buffered bytes and waits for the next packet start
func (x *Extractor) Reset() {
	x.Dropped += uint64(len(x.remainder))
	x.remainder = x.remainder[:0]
	x.queue = nil
	x.synced = false
}

// Synced reports whether the extractor knows where the next packet starts
func (x *Extractor) Synced() bool {
	return x.synced
}
