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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/layers"
	"jinr.ru/greenlab/go-xrit/pkg/log"
)

const (
	dialTimeout = 5 * time.Second
	// nanomsgHeaderLength precedes every frame sent by goesrecv
	nanomsgHeaderLength = 8
)

var (
	nanomsgSubscribe = []byte{0x00, 0x53, 0x50, 0x00, 0x00, 0x21, 0x00, 0x00}
	nanomsgAccept    = []byte{0x00, 0x53, 0x50, 0x00, 0x00, 0x20, 0x00, 0x00}
)

// InputServer reads frames from the configured source into its input queue
type InputServer struct {
	Server
	input string
	file  string
}

// NewInputServer prepares the configured input, a non empty file replays a capture instead
func NewInputServer(ctx context.Context, cfg *config.Config, file string) (*InputServer, error) {
	input := cfg.Rx.Input
	if file != "" {
		input = config.InputFile
	}
	switch input {
	case config.InputGoesrecv, config.InputOSP, config.InputUDP:
	case config.InputFile:
		if file == "" {
			return nil, config.ErrConfig{What: "file input needs a capture to replay"}
		}
	default:
		return nil, ErrUnknownInput{Input: input}
	}
	return &InputServer{
		Server: Server{
			Context: ctx,
			Config:  cfg,
			ChIn:    make(chan InPacket, 64),
		},
		input: input,
		file:  file,
	}, nil
}

// Input is the name of the source in use
func (s *InputServer) Input() string {
	return s.input
}

// Replay reports whether frames come from a capture file
func (s *InputServer) Replay() bool {
	return s.input == config.InputFile
}

// Start launches the reader. The input queue is closed when the source is exhausted
// or the context is done.
func (s *InputServer) Start() {
	go func() {
		defer close(s.ChIn)
		var err error
		switch s.input {
		case config.InputGoesrecv:
			err = s.readStream(s.Goesrecv.HostPort(), true)
		case config.InputOSP:
			err = s.readStream(s.OSP.HostPort(), false)
		case config.InputUDP:
			err = s.readUDP(s.UDP.HostPort())
		case config.InputFile:
			err = s.readFile(s.file)
		}
		if err != nil && s.Err() == nil {
			log.Error("Input %s stopped: %s", s.input, err)
		}
	}()
}

// readStream keeps a TCP connection to goesrecv or an OSP decoder open until the context is done
func (s *InputServer) readStream(addr string, nanomsg bool) error {
	dialer := &net.Dialer{Timeout: dialTimeout}
	for {
		log.Info("Connecting to %s at %s", s.input, addr)
		conn, err := dialer.DialContext(s, "tcp", addr)
		if err != nil {
			if s.Err() != nil {
				return nil
			}
			log.Warning("Can not connect to %s: %s", addr, err)
			if !s.sleep(retryInterval) {
				return nil
			}
			continue
		}

		err = s.readConn(conn, nanomsg)
		conn.Close()
		if s.Err() != nil {
			return nil
		}
		log.Warning("Lost connection to %s: %s", addr, err)
		if !s.sleep(retryInterval) {
			return nil
		}
	}
}

func (s *InputServer) readConn(conn net.Conn, nanomsg bool) error {
	stop := context.AfterFunc(s, func() { conn.Close() })
	defer stop()

	if nanomsg {
		if err := handshake(conn); err != nil {
			return err
		}
	}
	log.Info("Connected to %s", conn.RemoteAddr())

	header := make([]byte, nanomsgHeaderLength)
	frame := make([]byte, layers.FrameLength)
	for {
		if nanomsg {
			if _, err := io.ReadFull(conn, header); err != nil {
				return err
			}
			if n := binary.BigEndian.Uint64(header); n != layers.FrameLength {
				log.Debug("Skipping nanomsg message of %d bytes", n)
				if _, err := io.CopyN(io.Discard, conn, int64(n)); err != nil {
					return err
				}
				continue
			}
		}
		if _, err := io.ReadFull(conn, frame); err != nil {
			return err
		}
		if !s.emit(frame, conn.RemoteAddr()) {
			return nil
		}
	}
}

// handshake subscribes to the goesrecv nanomsg publisher
func handshake(conn net.Conn) error {
	conn.SetDeadline(time.Now().Add(dialTimeout))
	defer conn.SetDeadline(time.Time{})
	if _, err := conn.Write(nanomsgSubscribe); err != nil {
		return err
	}
	reply := make([]byte, len(nanomsgAccept))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return err
	}
	if !bytes.Equal(reply, nanomsgAccept) {
		return ErrHandshake{Got: reply}
	}
	return nil
}

// readUDP takes one frame per datagram, datagrams of another length are dropped
func (s *InputServer) readUDP(addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(s, func() { conn.Close() })
	defer stop()
	log.Info("Listening for frames on udp %s", conn.LocalAddr())

	buffer := make([]byte, 65536)
	for {
		length, from, err := conn.ReadFrom(buffer)
		if err != nil {
			if s.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if length != layers.FrameLength {
			log.Debug("Drop datagram of %d bytes from %s", length, from)
			continue
		}
		if !s.emit(buffer[:length], from) {
			return nil
		}
	}
}

// readFile replays a capture of consecutive frames
func (s *InputServer) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	log.Info("Replaying %s", path)

	frame := make([]byte, layers.FrameLength)
	count := 0
	for {
		_, err := io.ReadFull(f, frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			log.Warning("Ignoring truncated frame at the end of %s", path)
			break
		}
		if err != nil {
			return err
		}
		if !s.emit(frame, nil) {
			return nil
		}
		count++
	}
	log.Info("Replayed %d frames from %s", count, path)
	return nil
}
