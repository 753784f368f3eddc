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

package layers

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// CPPDULayerNum identifies the layer
	CPPDULayerNum = 2003

	CPPDUHeaderLength = 6
	// CPPDUCRCLength is the size of the CRC at the end of each packet data field
	CPPDUCRCLength = 2
	// FillAPID marks idle packets
	FillAPID = 2047
	// SequenceModulus is the wraparound of the 14 bit packet sequence count
	SequenceModulus = 1 << 14
)

// SequenceFlag tells where the packet is located inside a TP_File
type SequenceFlag uint8

const (
	SequenceContinue SequenceFlag = iota
	SequenceFirst
	SequenceLast
	SequenceSingle
)

func (f SequenceFlag) String() string {
	switch f {
	case SequenceContinue:
		return "CONTINUE"
	case SequenceFirst:
		return "FIRST"
	case SequenceLast:
		return "LAST"
	case SequenceSingle:
		return "SINGLE"
	}
	return "UNKNOWN"
}

// CPPDULayer is a CCSDS path protocol data unit (space packet)
type CPPDULayer struct {
	layers.BaseLayer
	Version         uint8 // 3 bits
	Type            uint8 // 1 bit
	SecondaryHeader bool
	APID            uint16 // 11 bits
	Sequence        SequenceFlag
	Counter         uint16 // 14 bits
	// Length is the value of the length field, i.e. data field length minus one
	Length uint16
	CRC    uint16
}

var CPPDULayerType = gopacket.RegisterLayerType(CPPDULayerNum,
	gopacket.LayerTypeMetadata{Name: "CPPDULayerType", Decoder: gopacket.DecodeFunc(decodeCPPDULayer)})

func (p *CPPDULayer) LayerType() gopacket.LayerType {
	return CPPDULayerType
}

// PacketLength returns the total length of a packet given its primary header
func PacketLength(header []byte) int {
	return CPPDUHeaderLength + int(binary.BigEndian.Uint16(header[4:6])) + 1
}

// DecodeFromBytes decodes exactly one complete packet. Payload is the user data without CRC.
func (p *CPPDULayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < CPPDUHeaderLength {
		df.SetTruncated()
		return ErrPacketTooShort{What: "CP_PDU header", Length: len(data)}
	}
	total := PacketLength(data)
	if len(data) < total {
		df.SetTruncated()
		return ErrPacketTooShort{What: "CP_PDU", Length: len(data)}
	}

	word := binary.BigEndian.Uint16(data[0:2])
	p.Version = uint8(word >> 13)
	p.Type = uint8(word>>12) & 0x1
	p.SecondaryHeader = (word>>11)&0x1 == 1
	p.APID = word & 0x7ff
	word = binary.BigEndian.Uint16(data[2:4])
	p.Sequence = SequenceFlag(word >> 14)
	p.Counter = word & 0x3fff
	p.Length = binary.BigEndian.Uint16(data[4:6])

	userEnd := total
	if total-CPPDUHeaderLength >= CPPDUCRCLength {
		userEnd = total - CPPDUCRCLength
		p.CRC = binary.BigEndian.Uint16(data[userEnd:total])
	}
	p.BaseLayer = layers.BaseLayer{
		Contents: data[:CPPDUHeaderLength],
		Payload:  data[CPPDUHeaderLength:userEnd],
	}
	return nil
}

// SerializeTo prepends the packet header and appends the CRC to the user data already in the buffer
func (p *CPPDULayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	userData := b.Bytes()
	if opts.ComputeChecksums {
		p.CRC = CRC16(userData)
	}
	if opts.FixLengths {
		p.Length = uint16(len(userData) + CPPDUCRCLength - 1)
	}

	tail, err := b.AppendBytes(CPPDUCRCLength)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(tail, p.CRC)

	header, err := b.PrependBytes(CPPDUHeaderLength)
	if err != nil {
		return err
	}
	word := uint16(p.Version&0x7)<<13 | uint16(p.Type&0x1)<<12 | p.APID&0x7ff
	if p.SecondaryHeader {
		word |= 1 << 11
	}
	binary.BigEndian.PutUint16(header[0:2], word)
	binary.BigEndian.PutUint16(header[2:4], uint16(p.Sequence)<<14|p.Counter&0x3fff)
	binary.BigEndian.PutUint16(header[4:6], p.Length)
	return nil
}

// UserData is the packet data field without the trailing CRC
func (p *CPPDULayer) UserData() []byte {
	return p.Payload
}

// ValidCRC checks the CRC of the user data
func (p *CPPDULayer) ValidCRC() bool {
	return CRC16(p.Payload) == p.CRC
}

func (p *CPPDULayer) IsFill() bool {
	return p.APID == FillAPID
}

// StartsFile reports whether the packet carries a TP_File header
func (p *CPPDULayer) StartsFile() bool {
	return p.Sequence == SequenceFirst || p.Sequence == SequenceSingle
}

// EndsFile reports whether the packet is the last one of a TP_File
func (p *CPPDULayer) EndsFile() bool {
	return p.Sequence == SequenceLast || p.Sequence == SequenceSingle
}

// NextSequence returns the packet sequence count expected after c
func NextSequence(c uint16) uint16 {
	return (c + 1) % SequenceModulus
}

func decodeCPPDULayer(data []byte, p gopacket.PacketBuilder) error {
	pdu := &CPPDULayer{}
	err := pdu.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(pdu)
	return nil
}
