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
	"errors"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-xrit/pkg/catalog"
	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/crypt"
	"jinr.ru/greenlab/go-xrit/pkg/demux"
	"jinr.ru/greenlab/go-xrit/pkg/layers"
	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/notify"
	"jinr.ru/greenlab/go-xrit/pkg/products"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

// sweepPeriod is how often idle channels are checked for stale products
const sweepPeriod = 5 * time.Second

type RxOptions struct {
	// File replays a frame capture instead of the configured input
	File string
	// Dump appends every received frame to this file
	Dump string
}

// RxServer receives frames and turns them into products
type RxServer struct {
	context.Context
	*config.Config

	Registry     *status.Registry
	Engine       *demux.Engine
	Materializer *products.Materializer
	Previewer    *products.Previewer
	Catalog      *catalog.State
	Emitter      *notify.Emitter
	Input        *InputServer
	Api          *ApiServer

	publisher *notify.MQTTPublisher
	dump      *Dump
	peer      string
}

func NewRxServer(ctx context.Context, cfg *config.Config, opts RxOptions) (*RxServer, error) {
	log.Info("Initializing %s receiver for %s", cfg.Rx.Mode, cfg.Rx.Spacecraft)

	keys, err := crypt.LoadKeys(cfg.Rx.Keys)
	if err != nil {
		var notFound crypt.ErrKeyFileNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Warning("%s. Images are disabled, encrypted xRIT files are saved as they are", err)
		cfg.Output.Images = false
		cfg.Output.XRIT = true
	}

	input, err := NewInputServer(ctx, cfg, opts.File)
	if err != nil {
		return nil, err
	}

	registry := status.NewRegistry()
	m := products.NewMaterializer(cfg, keys, registry)
	s := &RxServer{
		Context:      ctx,
		Config:       cfg,
		Registry:     registry,
		Materializer: m,
		Previewer:    products.NewPreviewer(m),
		Engine:       demux.NewEngine(cfg, registry, m),
		Input:        input,
	}

	s.Catalog, err = catalog.NewState(cfg.CatalogPath())
	if err != nil {
		return nil, err
	}
	if err := s.Catalog.Seed(registry); err != nil {
		log.Warning("Can not restore latest images: %s", err)
	}
	m.AddListener(s.Catalog)

	if cfg.MQTT.Broker != "" {
		s.publisher = notify.NewMQTTPublisher(cfg)
		s.Emitter = notify.NewEmitter(cfg, s.publisher)
		m.AddListener(s.Emitter)
	}

	if opts.Dump != "" {
		if s.dump, err = NewDump(opts.Dump); err != nil {
			s.Close()
			return nil, err
		}
	}

	if cfg.Dashboard.Enabled {
		if s.Api, err = NewApiServer(ctx, cfg, registry, s.Catalog); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Run receives until the context is done or a replayed capture is exhausted
func (s *RxServer) Run() error {
	errChan := make(chan error, 1)
	if s.Api != nil {
		go func() {
			if err := s.Api.Run(); err != nil {
				errChan <- err
			}
		}()
	}
	if s.Emitter != nil {
		go func() {
			if err := s.publisher.Connect(s); err != nil {
				log.Warning("%s, retrying in the background", err)
			}
		}()
		go s.Emitter.Run(s)
	}
	go s.schedule()

	s.Input.Start()
	source := gopacket.NewPacketSource(s.Input, layers.VCDULayerType)
	// frames are copied by the input and only decoded by the engine
	source.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	packets := source.Packets()
	for {
		select {
		case err := <-errChan:
			s.Engine.Stop()
			return err
		case packet, ok := <-packets:
			if !ok {
				return s.finish()
			}
			s.track(packet)
			s.push(packet.Data())
		}
	}
}

// track logs the peer sending frames whenever it changes
func (s *RxServer) track(packet gopacket.Packet) {
	addr, err := GetAddr(packet)
	if err != nil {
		return
	}
	if peer := addr.String(); peer != s.peer {
		log.Info("Receiving frames from %s", peer)
		s.peer = peer
	}
}

// Peer is the address of the last network peer that sent a frame
func (s *RxServer) Peer() string {
	return s.peer
}

func (s *RxServer) push(frame []byte) {
	if s.dump != nil {
		if err := s.dump.Write(frame); err != nil {
			log.Error("Can not dump frame: %s", err)
		}
	}
	if err := s.Engine.Push(frame); errors.Is(err, demux.ErrStopped) {
		log.Debug("Frame after stop dropped")
	}
}

// finish ends reception once the input is exhausted
func (s *RxServer) finish() error {
	if s.Err() != nil || !s.Input.Replay() {
		s.Engine.Stop()
		return nil
	}
	fill, err := FillFrame(0)
	if err == nil {
		s.push(fill)
	}
	s.Engine.AbandonAll(demux.ReasonEndOfInput)
	if !s.Engine.Complete() {
		log.Warning("Products still under construction at the end of the capture")
	}
	s.Engine.Stop()
	stats := s.Registry.Stats()
	log.Info("Capture done: %d frames, %d products, %d abandoned", stats.Frames, stats.Completed, stats.Abandoned)
	return nil
}

// schedule refreshes previews and abandons stale products while receiving
func (s *RxServer) schedule() {
	interval := s.Dashboard.PreviewInterval
	if interval <= 0 {
		interval = config.DefaultPreviewInterval
	}
	preview := time.NewTicker(interval)
	defer preview.Stop()
	sweep := time.NewTicker(sweepPeriod)
	defer sweep.Stop()
	for {
		select {
		case <-s.Done():
			return
		case <-preview.C:
			if s.Output.Images {
				s.Previewer.Render(s.Engine.BuildingImages())
			}
		case now := <-sweep.C:
			s.Engine.Sweep(now)
		}
	}
}

func (s *RxServer) Close() {
	if s.dump != nil {
		if err := s.dump.Close(); err != nil {
			log.Error("Can not close dump: %s", err)
		}
	}
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if s.Catalog != nil {
		s.Catalog.Close()
	}
}

// FillFrame is an idle frame with the given counter
func FillFrame(counter uint32) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&layers.VCDULayer{Version: 1, VCID: layers.FillVCID, Counter: counter},
		&layers.MPDULayer{FirstHeaderPointer: layers.NoPacketStart},
		gopacket.Payload(make([]byte, layers.PayloadLength)),
	)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
