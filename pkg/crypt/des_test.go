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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testKeys = Keys{
	0x0001: []byte{0x13, 0x34, 0x57, 0x79, 0x9b, 0xbc, 0xdf, 0xf1},
	0x2a2a: []byte("8bytekey"),
}

func TestDecryptRoundTrip(t *testing.T) {
	plain := []byte("The quick brown fox jumps over the lazy dog!")
	cipherText, ok := testKeys.Encrypt(plain, 0x0001)
	if !ok {
		t.Fatal("known key index rejected")
	}
	aligned := len(plain) - len(plain)%8
	if bytes.Equal(cipherText[:aligned], plain[:aligned]) {
		t.Fatal("encryption did not change the aligned part")
	}
	if !bytes.Equal(cipherText[aligned:], plain[aligned:]) {
		t.Error("trailing bytes must be left in clear")
	}

	got, ok := testKeys.Decrypt(cipherText, 0x0001)
	if !ok || !bytes.Equal(got, plain) {
		t.Errorf("round trip = %q", got)
	}
}

func TestDecryptKnownVector(t *testing.T) {
	// classic DES example: key 133457799BBCDFF1, plaintext 0123456789ABCDEF
	plain := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	want := []byte{0x85, 0xe8, 0x13, 0x54, 0x0f, 0x0a, 0xb4, 0x05}
	got, _ := testKeys.Encrypt(plain, 0x0001)
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestDecryptUnknownIndex(t *testing.T) {
	data := []byte("encrypted data which nobody can read")
	got, ok := testKeys.Decrypt(data, 0x7777)
	if ok || !bytes.Equal(got, data) {
		t.Error("unknown key index must return input unchanged")
	}
	var none Keys
	if _, ok := none.Decrypt(data, 1); ok {
		t.Error("nil key table must not decrypt")
	}
}

func TestLoadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.bin")
	if err := os.WriteFile(path, testKeys.Encode(), 0644); err != nil {
		t.Fatal(err)
	}
	keys, err := LoadKeys(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(testKeys, keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{0x0001, 0x2a2a}, keys.Indexes()); diff != "" {
		t.Errorf("indexes (-want +got):\n%s", diff)
	}
}

func TestLoadKeysErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadKeys(filepath.Join(dir, "missing.bin"))
	var notFound ErrKeyFileNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("missing file: got %v", err)
	}

	path := filepath.Join(dir, "short.bin")
	if err := os.WriteFile(path, testKeys.Encode()[:15], 0644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadKeys(path)
	var malformed ErrKeyFile
	if !errors.As(err, &malformed) {
		t.Errorf("truncated file: got %v", err)
	}
}
