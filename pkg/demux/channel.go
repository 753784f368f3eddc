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
	"jinr.ru/greenlab/go-xrit/pkg/layers"
)

// Channel is the demultiplexing session of one virtual channel
type Channel struct {
	VCID        uint8
	LastCounter uint32
	seen        bool

	Extractor   *Extractor
	Reassembler *Reassembler
}

func NewChannel(vcid uint8, onAbandon AbandonFunc) *Channel {
	return &Channel{
		VCID:        vcid,
		Extractor:   NewExtractor(vcid),
		Reassembler: NewReassembler(vcid, onAbandon),
	}
}

// Continuous checks the frame counter against the previous frame of this channel
// and remembers it. The first frame of a channel is always continuous.
func (c *Channel) Continuous(counter uint32) bool {
	ok := !c.seen || counter == layers.NextCounter(c.LastCounter)
	c.LastCounter = counter
	c.seen = true
	return ok
}
