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
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/layers"
)

func testPacket(t *testing.T, apid uint16, flag layers.SequenceFlag, counter uint16, user []byte) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	pdu := &layers.CPPDULayer{APID: apid, Sequence: flag, Counter: counter}
	if err := gopacket.SerializeLayers(buf, opts, pdu, gopacket.Payload(user)); err != nil {
		t.Fatal(err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

// testFrame puts packets at the start of one frame and fills the rest
func testFrame(t *testing.T, vcid uint8, counter uint32, packets ...[]byte) []byte {
	t.Helper()
	var zone []byte
	for _, p := range packets {
		zone = append(zone, p...)
	}
	if pad := layers.PayloadLength - len(zone); pad > 0 {
		if pad < layers.CPPDUHeaderLength+layers.CPPDUCRCLength {
			t.Fatalf("no room for a fill packet: %d bytes", pad)
		}
		user := make([]byte, pad-layers.CPPDUHeaderLength-layers.CPPDUCRCLength)
		zone = append(zone, testPacket(t, layers.FillAPID, layers.SequenceSingle, 0, user)...)
	}
	if len(zone) != layers.PayloadLength {
		t.Fatalf("packet zone has %d bytes", len(zone))
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.VCDULayer{Version: 1, SCID: 195, VCID: vcid, Counter: counter},
		&layers.MPDULayer{FirstHeaderPointer: 0},
		gopacket.Payload(zone),
	)
	if err != nil {
		t.Fatal(err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

func readFrames(t *testing.T, s *InputServer, n int) [][]byte {
	t.Helper()
	var frames [][]byte
	for len(frames) < n {
		data, info, err := s.ReadPacketData()
		if err != nil {
			t.Fatalf("after %d frames: %s", len(frames), err)
		}
		if info.CaptureLength != len(data) {
			t.Errorf("capture length %d for %d bytes", info.CaptureLength, len(data))
		}
		frames = append(frames, data)
	}
	return frames
}

func TestNewInputServer(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Rx.Input = "serial"
	var unknown ErrUnknownInput
	if _, err := NewInputServer(context.Background(), cfg, ""); !errors.As(err, &unknown) {
		t.Errorf("got %v", err)
	}
	s, err := NewInputServer(context.Background(), cfg, "capture.bin")
	if err != nil || !s.Replay() {
		t.Errorf("a capture file must select the file input: %v", err)
	}
	cfg.Rx.Input = config.InputFile
	if _, err := NewInputServer(context.Background(), cfg, ""); err == nil {
		t.Error("file input without capture accepted")
	}
}

func TestFileInput(t *testing.T) {
	frames := [][]byte{testFill(t, 1), testFill(t, 2), testFill(t, 3)}
	path := filepath.Join(t.TempDir(), "capture.bin")
	capture := bytes.Join(frames, nil)
	// a truncated frame at the end is ignored
	capture = append(capture, 1, 2, 3)
	if err := os.WriteFile(path, capture, 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewInputServer(context.Background(), config.NewDefaultConfig(), path)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	got := readFrames(t, s, 3)
	for i := range frames {
		if !bytes.Equal(got[i], frames[i]) {
			t.Errorf("frame %d differs", i)
		}
	}
	if _, _, err := s.ReadPacketData(); !errors.Is(err, io.EOF) {
		t.Errorf("end of capture: %v", err)
	}
}

func TestGoesrecvInput(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	frame := testFill(t, 7)
	served := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			served <- err
			return
		}
		defer conn.Close()
		hello := make([]byte, len(nanomsgSubscribe))
		if _, err := io.ReadFull(conn, hello); err != nil {
			served <- err
			return
		}
		if !bytes.Equal(hello, nanomsgSubscribe) {
			served <- ErrHandshake{Got: hello}
			return
		}
		conn.Write(nanomsgAccept)

		header := make([]byte, nanomsgHeaderLength)
		// a message of another size is skipped
		binary.BigEndian.PutUint64(header, 3)
		conn.Write(append(header, 1, 2, 3))
		binary.BigEndian.PutUint64(header, layers.FrameLength)
		conn.Write(append(header, frame...))
		served <- nil
		// keep the connection open until the client is done
		io.Copy(io.Discard, conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	cfg := config.NewDefaultConfig()
	cfg.Rx.Input = config.InputGoesrecv
	cfg.Goesrecv.Address = "127.0.0.1"
	cfg.Goesrecv.Port = addr.Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := NewInputServer(ctx, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	got := readFrames(t, s, 1)
	if !bytes.Equal(got[0], frame) {
		t.Error("frame differs")
	}
	if err := <-served; err != nil {
		t.Fatal(err)
	}

	cancel()
	select {
	case _, ok := <-s.ChIn:
		if ok {
			t.Error("unexpected frame after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Error("input queue not closed after cancel")
	}
}

func TestUDPInput(t *testing.T) {
	free, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := free.LocalAddr().(*net.UDPAddr).Port
	free.Close()

	cfg := config.NewDefaultConfig()
	cfg.Rx.Input = config.InputUDP
	cfg.UDP.Address = "127.0.0.1"
	cfg.UDP.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := NewInputServer(ctx, cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	s.Start()

	conn, err := net.Dial("udp", cfg.UDP.HostPort())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	frame := testFill(t, 9)

	received := make(chan []byte, 1)
	go func() {
		data, _, err := s.ReadPacketData()
		if err == nil {
			received <- data
		}
	}()
	deadline := time.After(3 * time.Second)
	for {
		// the listener may not be up yet, keep sending
		conn.Write([]byte("short datagram"))
		conn.Write(frame)
		select {
		case data := <-received:
			if !bytes.Equal(data, frame) {
				t.Error("frame differs")
			}
			return
		case <-deadline:
			t.Fatal("no frame received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestDumpSkipsFillFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump", "frames.bin")
	d, err := NewDump(path)
	if err != nil {
		t.Fatal(err)
	}
	data := testFrame(t, 0, 5, testPacket(t, 100, layers.SequenceSingle, 0, []byte("x")))
	d.Write(testFill(t, 1))
	d.Write(data)
	d.Write([]byte{1, 2, 3})
	if d.Frames() != 1 {
		t.Errorf("dumped %d frames", d.Frames())
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, data) {
		t.Error("dump does not hold the data frame")
	}
}

func testFill(t *testing.T, counter uint32) []byte {
	t.Helper()
	frame, err := FillFrame(counter)
	if err != nil {
		t.Fatal(err)
	}
	return frame
}
