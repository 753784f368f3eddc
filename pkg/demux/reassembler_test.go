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
	"testing"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-xrit/pkg/layers"
)

func decodePacket(t *testing.T, raw []byte) *layers.CPPDULayer {
	t.Helper()
	p := &layers.CPPDULayer{}
	if err := p.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestReassembler() (*Reassembler, *[]*Product) {
	var abandoned []*Product
	r := NewReassembler(0, func(p *Product) { abandoned = append(abandoned, p) })
	return r, &abandoned
}

func header(length uint64, data []byte) []byte {
	return append(layers.TPFileHeader{Length: length * 8}.Encode(), data...)
}

func TestReassemblerFillIgnored(t *testing.T) {
	r, abandoned := newTestReassembler()
	p, err := r.Handle(decodePacket(t, Packet(t, layers.FillAPID, layers.SequenceSingle, 0, make([]byte, 10))))
	if p != nil || err != nil || r.Active() != nil || len(*abandoned) != 0 {
		t.Error("fill packet must be ignored")
	}
}

func TestReassemblerZeroLength(t *testing.T) {
	r, _ := newTestReassembler()
	p, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceSingle, 0, header(0, nil))))
	if err != nil || p == nil || p.Length != 0 || p.State != StateComplete {
		t.Fatalf("zero length file must complete immediately: %v %v", p, err)
	}
}

func TestReassemblerNoActiveProduct(t *testing.T) {
	r, _ := newTestReassembler()
	_, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceContinue, 5, []byte("data"))))
	if !errors.Is(err, ErrNoActiveProduct) {
		t.Errorf("got %v", err)
	}
}

func TestReassemblerCRCAbandons(t *testing.T) {
	r, abandoned := newTestReassembler()
	if _, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceFirst, 0, header(100, testData(10))))); err != nil {
		t.Fatal(err)
	}
	raw := Packet(t, 1, layers.SequenceContinue, 1, testData(10))
	raw[layers.CPPDUHeaderLength] ^= 1
	_, err := r.Handle(decodePacket(t, raw))
	var crcErr ErrCRC
	if !errors.As(err, &crcErr) {
		t.Fatalf("got %v", err)
	}
	if r.Active() != nil || len(*abandoned) != 1 || (*abandoned)[0].Reason != ReasonCRC {
		t.Error("CRC error must abandon the product")
	}
}

func TestReassemblerSequence(t *testing.T) {
	for name, next := range map[string][]byte{
		"skipped packet": Packet(t, 1, layers.SequenceContinue, 2, testData(10)),
		"other APID":     Packet(t, 2, layers.SequenceContinue, 1, testData(10)),
	} {
		r, abandoned := newTestReassembler()
		if _, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceFirst, 0, header(100, testData(10))))); err != nil {
			t.Fatal(err)
		}
		_, err := r.Handle(decodePacket(t, next))
		var seqErr ErrSequence
		if !errors.As(err, &seqErr) {
			t.Errorf("%s: got %v", name, err)
		}
		if len(*abandoned) != 1 || (*abandoned)[0].Reason != ReasonSequence {
			t.Errorf("%s: product not abandoned", name)
		}
	}
}

func TestReassemblerSequenceWraps(t *testing.T) {
	r, _ := newTestReassembler()
	if _, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceFirst, layers.SequenceModulus-1, header(20, testData(10))))); err != nil {
		t.Fatal(err)
	}
	p, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceLast, 0, testData(10))))
	if err != nil || p == nil {
		t.Fatalf("wrapped sequence count must continue the file: %v", err)
	}
}

func TestReassemblerShortLastPacket(t *testing.T) {
	r, abandoned := newTestReassembler()
	if _, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceFirst, 0, header(100, testData(10))))); err != nil {
		t.Fatal(err)
	}
	p, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceLast, 1, testData(10))))
	if p != nil || err != nil {
		t.Fatalf("short file must not complete: %v %v", p, err)
	}
	if len(*abandoned) != 1 || (*abandoned)[0].Reason != ReasonShort {
		t.Error("short file must be abandoned")
	}
}

func TestReassemblerTooLarge(t *testing.T) {
	for name, bits := range map[string]uint64{
		"over limit":   (MaxProductLength + 1) * 8,
		"largest bits": ^uint64(0),
		"rounds up":    ^uint64(0) - 6,
	} {
		r, _ := newTestReassembler()
		user := layers.TPFileHeader{Length: bits}.Encode()
		p, err := r.Handle(decodePacket(t, Packet(t, 1, layers.SequenceSingle, 0, user)))
		var sizeErr ErrProductTooLarge
		if !errors.As(err, &sizeErr) || p != nil || r.Active() != nil {
			t.Errorf("%s: got %v %v", name, p, err)
		}
	}
}

func TestExtractorSpanningPackets(t *testing.T) {
	x := NewExtractor(0)
	first := Packet(t, 1, layers.SequenceSingle, 0, testData(1000))
	second := Packet(t, 1, layers.SequenceSingle, 1, testData(200))
	stream := append(append([]byte{}, first...), second...)

	x.Feed(0, stream[:layers.PayloadLength])
	if _, ok := x.Next(); ok {
		t.Fatal("packet is not complete yet")
	}
	x.Feed(uint16(len(first)-layers.PayloadLength), stream[layers.PayloadLength:])
	for i := 0; i < 2; i++ {
		p, ok := x.Next()
		if !ok || p.Counter != uint16(i) || !p.ValidCRC() {
			t.Fatalf("packet %d missing or broken", i)
		}
	}
}

func TestExtractorWaitsForPacketStart(t *testing.T) {
	x := NewExtractor(0)
	x.Feed(layers.NoPacketStart, testData(layers.PayloadLength))
	if x.Synced() {
		t.Fatal("continuation frame must not synchronise")
	}
	packet := Packet(t, 1, layers.SequenceSingle, 0, testData(20))
	zone := append(testData(30), packet...)
	x.Feed(30, zone)
	p, ok := x.Next()
	if !ok || p.Counter != 0 {
		t.Fatal("packet after first header pointer missing")
	}
	if x.Dropped != 30 {
		t.Errorf("dropped %d bytes", x.Dropped)
	}
}

func TestExtractorDropsBrokenRemainder(t *testing.T) {
	x := NewExtractor(0)
	long := Packet(t, 1, layers.SequenceSingle, 0, testData(500))
	x.Feed(0, long[:300])
	// next frame claims a packet starts after only 10 more bytes
	next := Packet(t, 1, layers.SequenceSingle, 1, testData(20))
	x.Feed(10, append(append([]byte{}, long[300:310]...), next...))

	p, ok := x.Next()
	if !ok || p.Counter != 1 {
		t.Fatal("extractor did not resynchronise on the first header pointer")
	}
	if _, ok := x.Next(); ok {
		t.Error("broken packet must be dropped")
	}
	if x.Dropped != 310 {
		t.Errorf("dropped %d bytes", x.Dropped)
	}
}
