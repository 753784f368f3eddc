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
	"fmt"
)

// ErrInvalidFrameLength returned when a frame is not exactly FrameLength bytes long
type ErrInvalidFrameLength struct {
	Length int
}

func (e ErrInvalidFrameLength) Error() string {
	return fmt.Sprintf("Invalid frame length: %d (must be %d)", e.Length, FrameLength)
}

// ErrPacketTooShort returned when there are not enough bytes to decode a structure
type ErrPacketTooShort struct {
	What   string
	Length int
}

func (e ErrPacketTooShort) Error() string {
	return fmt.Sprintf("%s too short: %d bytes", e.What, e.Length)
}

// ErrXRITHeader returned when xRIT header chain is malformed
type ErrXRITHeader struct {
	What string
}

func (e ErrXRITHeader) Error() string {
	return fmt.Sprintf("Malformed xRIT header: %s", e.What)
}
