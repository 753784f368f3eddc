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

package srv

import (
	"fmt"
)

// ErrGetAddr returned when we can not get the address of the peer that sent a frame
type ErrGetAddr struct{}

func (e ErrGetAddr) Error() string {
	return "Error while getting peer address"
}

// ErrHandshake returned when goesrecv does not answer the nanomsg handshake
type ErrHandshake struct {
	Got []byte
}

func (e ErrHandshake) Error() string {
	return fmt.Sprintf("Unexpected nanomsg handshake reply: % x", e.Got)
}

// ErrUnknownInput returned for an input name that has no frame source
type ErrUnknownInput struct {
	Input string
}

func (e ErrUnknownInput) Error() string {
	return fmt.Sprintf("Unknown input: %s", e.Input)
}
