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
	"context"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-xrit/pkg/config"
)

// retryInterval is the pause between attempts to reach a frame source
const retryInterval = 2 * time.Second

type InPacket struct {
	Data []byte
	gopacket.CaptureInfo
}

type Server struct {
	context.Context
	*config.Config
	ChIn chan InPacket
}

// ReadPacketData reads the input queue and returns packet data and metadata.
// It returns io.EOF once the queue is closed or the context is done.
// This method is from PacketDataSource interface.
func (s *Server) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	select {
	case p, ok := <-s.ChIn:
		if !ok {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return p.Data, p.CaptureInfo, nil
	case <-s.Done():
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
}

// emit copies data to the input queue, it returns false when the context is done
func (s *Server) emit(data []byte, from net.Addr) bool {
	frame := make([]byte, len(data))
	copy(frame, data)
	info := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if from != nil {
		info.AncillaryData = []interface{}{from}
	}
	select {
	case s.ChIn <- InPacket{Data: frame, CaptureInfo: info}:
		return true
	case <-s.Done():
		return false
	}
}

// sleep waits for d, it returns false when the context is done first
func (s *Server) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.Done():
		return false
	}
}

// GetAddr returns the address of the peer that sent the packet
func GetAddr(packet gopacket.Packet) (net.Addr, error) {
	meta := packet.Metadata()
	if len(meta.CaptureInfo.AncillaryData) >= 1 {
		addr, ok := meta.CaptureInfo.AncillaryData[0].(net.Addr)
		if !ok {
			return nil, ErrGetAddr{}
		}
		return addr, nil
	}
	return nil, ErrGetAddr{}
}
