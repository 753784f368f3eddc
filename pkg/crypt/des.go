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
	"crypto/cipher"
	"crypto/des"

	"jinr.ru/greenlab/go-xrit/pkg/log"
)

// Decrypt runs DES-ECB with the key of index over the 8 byte aligned part of data.
// Trailing bytes are copied as they are. With an unknown index data is returned
// unchanged and false.
func (k Keys) Decrypt(data []byte, index uint16) ([]byte, bool) {
	block, ok := k.block(index)
	if !ok {
		return data, false
	}
	return ecb(data, block.Decrypt), true
}

// Encrypt is the inverse of Decrypt
func (k Keys) Encrypt(data []byte, index uint16) ([]byte, bool) {
	block, ok := k.block(index)
	if !ok {
		return data, false
	}
	return ecb(data, block.Encrypt), true
}

func (k Keys) block(index uint16) (cipher.Block, bool) {
	key, ok := k[index]
	if !ok {
		return nil, false
	}
	block, err := des.NewCipher(key)
	if err != nil {
		log.Warning("Key %04X is not usable: %s", index, err)
		return nil, false
	}
	return block, true
}

func ecb(data []byte, transform func(dst, src []byte)) []byte {
	out := make([]byte, len(data))
	aligned := len(data) - len(data)%des.BlockSize
	for offset := 0; offset < aligned; offset += des.BlockSize {
		transform(out[offset:offset+des.BlockSize], data[offset:offset+des.BlockSize])
	}
	copy(out[aligned:], data[aligned:])
	return out
}
