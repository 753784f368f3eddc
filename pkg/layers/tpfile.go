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
)

// TPFileHeaderLength is the size of the transport file header at the start of the first packet of a file
const TPFileHeaderLength = 10

// TPFileHeader precedes the xRIT file in the first CP_PDU of a transport file
type TPFileHeader struct {
	Counter uint16
	// Length is the file length in bits
	Length uint64
}

func DecodeTPFileHeader(data []byte) (TPFileHeader, error) {
	if len(data) < TPFileHeaderLength {
		return TPFileHeader{}, ErrPacketTooShort{What: "TP_File header", Length: len(data)}
	}
	return TPFileHeader{
		Counter: binary.BigEndian.Uint16(data[0:2]),
		Length:  binary.BigEndian.Uint64(data[2:10]),
	}, nil
}

// Bytes returns the file length in bytes, rounded up
func (h TPFileHeader) Bytes() uint64 {
	n := h.Length / 8
	if h.Length%8 != 0 {
		n++
	}
	return n
}

func (h TPFileHeader) Encode() []byte {
	b := make([]byte, TPFileHeaderLength)
	binary.BigEndian.PutUint16(b[0:2], h.Counter)
	binary.BigEndian.PutUint64(b[2:10], h.Length)
	return b
}
