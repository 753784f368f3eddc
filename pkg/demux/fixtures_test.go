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
	"sync"
	"testing"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-xrit/pkg/layers"
)

// XRITFile builds an xRIT file with the given header values and data field
func XRITFile(h layers.XRITHeader, data []byte) []byte {
	h.DataLength = uint64(len(data)) * 8
	h.HeaderLength = 0
	return append(h.Serialize(), data...)
}

// Packetize splits file into CP_PDUs of at most chunk bytes of file data each.
// seq is the packet sequence counter of the APID, it is advanced.
func Packetize(t testing.TB, apid uint16, seq *uint16, file []byte, chunk int) [][]byte {
	t.Helper()
	tp := layers.TPFileHeader{Length: uint64(len(file)) * 8}
	var chunks [][]byte
	for offset := 0; offset < len(file) || offset == 0; offset += chunk {
		end := offset + chunk
		if end > len(file) {
			end = len(file)
		}
		chunks = append(chunks, file[offset:end])
		if end == len(file) {
			break
		}
	}

	var packets [][]byte
	for i, c := range chunks {
		flag := layers.SequenceContinue
		switch {
		case len(chunks) == 1:
			flag = layers.SequenceSingle
		case i == 0:
			flag = layers.SequenceFirst
		case i == len(chunks)-1:
			flag = layers.SequenceLast
		}
		user := c
		if i == 0 {
			user = append(tp.Encode(), c...)
		}
		packets = append(packets, Packet(t, apid, flag, *seq, user))
		*seq = layers.NextSequence(*seq)
	}
	return packets
}

// Packet serializes one CP_PDU with a valid CRC
func Packet(t testing.TB, apid uint16, flag layers.SequenceFlag, counter uint16, user []byte) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	pdu := &layers.CPPDULayer{APID: apid, Sequence: flag, Counter: counter}
	if err := gopacket.SerializeLayers(buf, opts, pdu, gopacket.Payload(user)); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

// Frames multiplexes packets into consecutive frames of one virtual channel.
// The last frame is padded with a fill packet.
func Frames(t testing.TB, vcid uint8, counter uint32, packets [][]byte) [][]byte {
	t.Helper()
	var stream []byte
	starts := map[int]bool{}
	for _, p := range packets {
		starts[len(stream)] = true
		stream = append(stream, p...)
	}
	if pad := (layers.PayloadLength - len(stream)%layers.PayloadLength) % layers.PayloadLength; pad != 0 {
		if pad < layers.CPPDUHeaderLength+layers.CPPDUCRCLength {
			pad += layers.PayloadLength
		}
		starts[len(stream)] = true
		user := make([]byte, pad-layers.CPPDUHeaderLength-layers.CPPDUCRCLength)
		stream = append(stream, Packet(t, layers.FillAPID, layers.SequenceSingle, 0, user)...)
	}

	var frames [][]byte
	for offset := 0; offset < len(stream); offset += layers.PayloadLength {
		fhp := uint16(layers.NoPacketStart)
		for i := 0; i < layers.PayloadLength; i++ {
			if starts[offset+i] {
				fhp = uint16(i)
				break
			}
		}
		frames = append(frames, Frame(t, vcid, counter, fhp, stream[offset:offset+layers.PayloadLength]))
		counter = layers.NextCounter(counter)
	}
	return frames
}

// Frame serializes one frame
func Frame(t testing.TB, vcid uint8, counter uint32, fhp uint16, zone []byte) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.VCDULayer{Version: 1, SCID: 195, VCID: vcid, Counter: counter},
		&layers.MPDULayer{FirstHeaderPointer: fhp},
		gopacket.Payload(zone),
	)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

// FillFrame is an idle frame
func FillFrame(t testing.TB, counter uint32) []byte {
	return Frame(t, layers.FillVCID, counter, layers.NoPacketStart, make([]byte, layers.PayloadLength))
}

// Collector is a ProductHandler remembering every completed product
type Collector struct {
	mu       sync.Mutex
	Products []*Product
	Err      error
}

func (c *Collector) HandleProduct(p *Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Products = append(c.Products, p)
	return c.Err
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Products)
}
