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
	"fmt"
	"strings"
	"time"
)

// xRIT header record types
const (
	HeaderPrimary         = 0
	HeaderImageStructure  = 1
	HeaderImageNavigation = 2
	HeaderImageData       = 3
	HeaderAnnotation      = 4
	HeaderTimestamp       = 5
	HeaderAncillaryText   = 6
	HeaderKey             = 7
	HeaderSegment         = 128
)

const (
	PrimaryHeaderLength        = 16
	ImageStructureHeaderLength = 9
	TimestampHeaderLength      = 10
	KeyHeaderLength            = 7
	SegmentHeaderLength        = 7
)

// xRIT file types
const (
	FileTypeImage      = 0
	FileTypeGTS        = 1
	FileTypeText       = 2
	FileTypeKeyMessage = 3
)

// cdsEpoch is day 0 of CCSDS day segmented time codes
var cdsEpoch = time.Date(1958, time.January, 1, 0, 0, 0, 0, time.UTC)

type ImageStructure struct {
	BitsPerPixel uint8
	Columns      uint16
	Lines        uint16
	Compression  uint8
}

// SegmentID locates a segment of a multi-segment image
type SegmentID struct {
	Sequence  uint8
	Total     uint8
	StartLine uint16
}

// XRITHeader is the parsed header field of an xRIT file
type XRITHeader struct {
	FileType     uint8
	HeaderLength uint32
	// DataLength is the data field length in bits
	DataLength uint64
	Name       string
	Timestamp  time.Time
	KeyIndex   uint16
	Image      *ImageStructure
	Segment    *SegmentID

	// keyOffset is the position of the key index inside the file, 0 without key header
	keyOffset int
}

// ParseXRIT parses the header field at the start of an xRIT file.
// The whole header field must be present.
func ParseXRIT(data []byte) (*XRITHeader, error) {
	if len(data) < PrimaryHeaderLength {
		return nil, ErrPacketTooShort{What: "xRIT primary header", Length: len(data)}
	}
	if data[0] != HeaderPrimary || binary.BigEndian.Uint16(data[1:3]) != PrimaryHeaderLength {
		return nil, ErrXRITHeader{What: "first header is not a primary header"}
	}

	h := &XRITHeader{
		FileType:     data[3],
		HeaderLength: binary.BigEndian.Uint32(data[4:8]),
		DataLength:   binary.BigEndian.Uint64(data[8:16]),
	}
	if h.HeaderLength < PrimaryHeaderLength {
		return nil, ErrXRITHeader{What: fmt.Sprintf("total header length %d", h.HeaderLength)}
	}
	if uint64(len(data)) < uint64(h.HeaderLength) {
		return nil, ErrPacketTooShort{What: "xRIT header field", Length: len(data)}
	}

	offset := PrimaryHeaderLength
	end := int(h.HeaderLength)
	for offset < end {
		if end-offset < 3 {
			return nil, ErrXRITHeader{What: fmt.Sprintf("truncated header record at %d", offset)}
		}
		kind := data[offset]
		length := int(binary.BigEndian.Uint16(data[offset+1 : offset+3]))
		if length < 3 || offset+length > end {
			return nil, ErrXRITHeader{What: fmt.Sprintf("header type %d has length %d", kind, length)}
		}
		record := data[offset : offset+length]

		switch kind {
		case HeaderImageStructure:
			if length >= ImageStructureHeaderLength {
				h.Image = &ImageStructure{
					BitsPerPixel: record[3],
					Columns:      binary.BigEndian.Uint16(record[4:6]),
					Lines:        binary.BigEndian.Uint16(record[6:8]),
					Compression:  record[8],
				}
			}
		case HeaderAnnotation:
			h.Name = strings.TrimRight(string(record[3:]), "\x00 ")
		case HeaderTimestamp:
			if length >= TimestampHeaderLength {
				days := binary.BigEndian.Uint16(record[4:6])
				ms := binary.BigEndian.Uint32(record[6:10])
				h.Timestamp = cdsEpoch.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond)
			}
		case HeaderKey:
			if length >= KeyHeaderLength {
				h.KeyIndex = binary.BigEndian.Uint16(record[5:7])
				h.keyOffset = offset + 5
			}
		case HeaderSegment:
			if length >= SegmentHeaderLength {
				h.Segment = &SegmentID{
					Sequence:  record[3],
					Total:     record[4],
					StartLine: binary.BigEndian.Uint16(record[5:7]),
				}
			}
		}
		offset += length
	}
	return h, nil
}

// Encrypted reports whether the data field was encrypted with a non-zero key index
func (h *XRITHeader) Encrypted() bool {
	return h.keyOffset != 0 && h.KeyIndex != 0
}

// DataField returns the data field of file. Missing bytes at the end are not an error.
func (h *XRITHeader) DataField(file []byte) []byte {
	start := uint64(h.HeaderLength)
	if start > uint64(len(file)) {
		return nil
	}
	end := start + (h.DataLength+7)/8
	if end > uint64(len(file)) {
		end = uint64(len(file))
	}
	return file[start:end]
}

// ClearKeyIndex zeroes the key index inside file so that a decrypted file reads as clear text
func (h *XRITHeader) ClearKeyIndex(file []byte) {
	if h.keyOffset == 0 || h.keyOffset+2 > len(file) {
		return
	}
	binary.BigEndian.PutUint16(file[h.keyOffset:h.keyOffset+2], 0)
	h.KeyIndex = 0
}

// Serialize builds a header field for the current values.
// DataLength and HeaderLength are taken as they are unless HeaderLength is zero.
func (h *XRITHeader) Serialize() []byte {
	var records []byte
	if h.Image != nil {
		r := make([]byte, ImageStructureHeaderLength)
		r[0] = HeaderImageStructure
		binary.BigEndian.PutUint16(r[1:3], ImageStructureHeaderLength)
		r[3] = h.Image.BitsPerPixel
		binary.BigEndian.PutUint16(r[4:6], h.Image.Columns)
		binary.BigEndian.PutUint16(r[6:8], h.Image.Lines)
		r[8] = h.Image.Compression
		records = append(records, r...)
	}
	if h.Name != "" {
		r := make([]byte, 3, 3+len(h.Name))
		r[0] = HeaderAnnotation
		binary.BigEndian.PutUint16(r[1:3], uint16(3+len(h.Name)))
		records = append(records, append(r, h.Name...)...)
	}
	if !h.Timestamp.IsZero() {
		r := make([]byte, TimestampHeaderLength)
		r[0] = HeaderTimestamp
		binary.BigEndian.PutUint16(r[1:3], TimestampHeaderLength)
		since := h.Timestamp.Sub(cdsEpoch)
		days := since / (24 * time.Hour)
		binary.BigEndian.PutUint16(r[4:6], uint16(days))
		binary.BigEndian.PutUint32(r[6:10], uint32((since-days*24*time.Hour)/time.Millisecond))
		records = append(records, r...)
	}
	key := make([]byte, KeyHeaderLength)
	key[0] = HeaderKey
	binary.BigEndian.PutUint16(key[1:3], KeyHeaderLength)
	binary.BigEndian.PutUint16(key[5:7], h.KeyIndex)
	keyAt := PrimaryHeaderLength + len(records) + 5
	records = append(records, key...)
	if h.Segment != nil {
		r := make([]byte, SegmentHeaderLength)
		r[0] = HeaderSegment
		binary.BigEndian.PutUint16(r[1:3], SegmentHeaderLength)
		r[3] = h.Segment.Sequence
		r[4] = h.Segment.Total
		binary.BigEndian.PutUint16(r[5:7], h.Segment.StartLine)
		records = append(records, r...)
	}

	if h.HeaderLength == 0 {
		h.HeaderLength = uint32(PrimaryHeaderLength + len(records))
	}
	h.keyOffset = keyAt

	out := make([]byte, PrimaryHeaderLength, PrimaryHeaderLength+len(records))
	out[0] = HeaderPrimary
	binary.BigEndian.PutUint16(out[1:3], PrimaryHeaderLength)
	out[3] = h.FileType
	binary.BigEndian.PutUint32(out[4:8], h.HeaderLength)
	binary.BigEndian.PutUint64(out[8:16], h.DataLength)
	out = append(out, records...)
	for len(out) < int(h.HeaderLength) {
		out = append(out, 0)
	}
	return out
}
