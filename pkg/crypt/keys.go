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

package crypt

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"jinr.ru/greenlab/go-xrit/pkg/log"
)

const (
	// KeyLength is the size of a DES key
	KeyLength = 8
	// keyRecordLength is a key index followed by the key
	keyRecordLength = 2 + KeyLength
)

// Keys maps key indexes found in xRIT key headers to DES keys
type Keys map[uint16][]byte

// LoadKeys reads a decrypted key message file:
// a big endian record count followed by records of key index and key.
func LoadKeys(path string) (Keys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyFileNotFound{Path: path}
		}
		return nil, err
	}
	keys, err := ParseKeys(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info("Loaded %d decryption keys from %s", len(keys), path)
	return keys, nil
}

func ParseKeys(data []byte) (Keys, error) {
	if len(data) < 2 {
		return nil, ErrKeyFile{What: "missing key count"}
	}
	count := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+count*keyRecordLength {
		return nil, ErrKeyFile{What: fmt.Sprintf("%d keys declared, file holds %d bytes", count, len(data))}
	}
	keys := make(Keys, count)
	for i := 0; i < count; i++ {
		offset := 2 + i*keyRecordLength
		index := binary.BigEndian.Uint16(data[offset : offset+2])
		key := make([]byte, KeyLength)
		copy(key, data[offset+2:offset+keyRecordLength])
		keys[index] = key
	}
	return keys, nil
}

// Encode writes keys in the format read by ParseKeys, ordered by index
func (k Keys) Encode() []byte {
	indexes := k.Indexes()
	out := make([]byte, 2, 2+len(indexes)*keyRecordLength)
	binary.BigEndian.PutUint16(out, uint16(len(indexes)))
	for _, index := range indexes {
		record := make([]byte, keyRecordLength)
		binary.BigEndian.PutUint16(record[0:2], index)
		copy(record[2:], k[index])
		out = append(out, record...)
	}
	return out
}

// Indexes returns the known key indexes in ascending order
func (k Keys) Indexes() []uint16 {
	indexes := make([]uint16, 0, len(k))
	for index := range k {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes
}
