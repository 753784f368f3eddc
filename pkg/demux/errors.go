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
	"fmt"
)

var (
	// ErrStopped is returned by Push after Stop
	ErrStopped = errors.New("demultiplexer stopped")
	// ErrNoActiveProduct is returned for a data packet that arrives without a preceding file header
	ErrNoActiveProduct = errors.New("no active product")
)

type ErrProductTooLarge struct {
	Length uint64
}

func (e ErrProductTooLarge) Error() string {
	return fmt.Sprintf("Declared product length %d exceeds %d bytes", e.Length, MaxProductLength)
}

type ErrCRC struct {
	APID    uint16
	Counter uint16
}

func (e ErrCRC) Error() string {
	return fmt.Sprintf("CRC mismatch: APID %d packet %d", e.APID, e.Counter)
}

type ErrSequence struct {
	What string
}

func (e ErrSequence) Error() string {
	return fmt.Sprintf("Packet out of sequence: %s", e.What)
}
