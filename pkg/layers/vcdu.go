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
	// VCDULayerNum identifies the layer
	VCDULayerNum = 2001
	// MPDULayerNum identifies the layer
	MPDULayerNum = 2002

	// FrameLength is the size of one VCDU as delivered by the demodulator (CRC and RS check bytes already removed)
	FrameLength      = 892
	VCDUHeaderLength = 6
	MPDUHeaderLength = 2
	// PayloadLength is the size of M_PDU packet zone
	PayloadLength = FrameLength - VCDUHeaderLength - MPDUHeaderLength

	// NoPacketStart is the first header pointer value for a frame without the beginning of a packet
	NoPacketStart = 0x7ff
	// FillVCID is the virtual channel of idle frames
	FillVCID = 63
	// CounterModulus is the wraparound of the 24 bit VCDU counter
	CounterModulus = 1 << 24
)

// VCDULayer is the primary header of a virtual channel data unit
type VCDULayer struct {
	layers.BaseLayer
	Version uint8  // 2 bits
	SCID    uint8  // 8 bits
	VCID    uint8  // 6 bits
	Counter uint32 // 24 bits
	Replay  bool
}

var VCDULayerType = gopacket.RegisterLayerType(VCDULayerNum,
	gopacket.LayerTypeMetadata{Name: "VCDULayerType", Decoder: gopacket.DecodeFunc(decodeVCDULayer)})

// LayerType returns the type of the VCDU layer in the layer catalog
func (v *VCDULayer) LayerType() gopacket.LayerType {
	return VCDULayerType
}

func (v *VCDULayer) NextLayerType() gopacket.LayerType {
	return MPDULayerType
}

// DecodeFromBytes decodes VCDU header. Only complete frames are accepted.
func (v *VCDULayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) != FrameLength {
		if len(data) < FrameLength {
			df.SetTruncated()
		}
		return ErrInvalidFrameLength{Length: len(data)}
	}

	v.BaseLayer = layers.BaseLayer{
		Contents: data[:VCDUHeaderLength],
		Payload:  data[VCDUHeaderLength:],
	}
	v.Version = data[0] >> 6
	v.SCID = (data[0]&0x3f)<<2 | data[1]>>6
	v.VCID = data[1] & 0x3f
	v.Counter = uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4])
	v.Replay = data[5]>>7 == 1
	return nil
}

// SerializeTo writes the VCDU header in front of the already serialized M_PDU
func (v *VCDULayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(VCDUHeaderLength)
	if err != nil {
		return err
	}
	bytes[0] = v.Version<<6 | (v.SCID >> 2)
	bytes[1] = (v.SCID&0x3)<<6 | (v.VCID & 0x3f)
	bytes[2] = uint8(v.Counter >> 16)
	bytes[3] = uint8(v.Counter >> 8)
	bytes[4] = uint8(v.Counter)
	bytes[5] = 0
	if v.Replay {
		bytes[5] = 0x80
	}
	return nil
}

// IsFill reports whether the frame belongs to the idle channel
func (v *VCDULayer) IsFill() bool {
	return v.VCID == FillVCID
}

func decodeVCDULayer(data []byte, p gopacket.PacketBuilder) error {
	v := &VCDULayer{}
	err := v.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(v)
	return p.NextDecoder(v.NextLayerType())
}

// MPDULayer is the multiplexing header that points at the first packet header in the frame
type MPDULayer struct {
	layers.BaseLayer
	FirstHeaderPointer uint16 // 11 bits
}

var MPDULayerType = gopacket.RegisterLayerType(MPDULayerNum,
	gopacket.LayerTypeMetadata{Name: "MPDULayerType", Decoder: gopacket.DecodeFunc(decodeMPDULayer)})

func (m *MPDULayer) LayerType() gopacket.LayerType {
	return MPDULayerType
}

func (m *MPDULayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < MPDUHeaderLength {
		df.SetTruncated()
		return ErrInvalidFrameLength{Length: len(data) + VCDUHeaderLength}
	}
	m.BaseLayer = layers.BaseLayer{
		Contents: data[:MPDUHeaderLength],
		Payload:  data[MPDUHeaderLength:],
	}
	m.FirstHeaderPointer = binary.BigEndian.Uint16(data[0:2]) & 0x7ff
	return nil
}

func (m *MPDULayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(MPDUHeaderLength)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(bytes, m.FirstHeaderPointer&0x7ff)
	return nil
}

// HasPacketStart reports whether a new packet header begins inside this frame
func (m *MPDULayer) HasPacketStart() bool {
	return m.FirstHeaderPointer != NoPacketStart
}

func decodeMPDULayer(data []byte, p gopacket.PacketBuilder) error {
	m := &MPDULayer{}
	err := m.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(m)
	return nil
}

// NextCounter returns the counter value expected after c
func NextCounter(c uint32) uint32 {
	return (c + 1) % CounterModulus
}
