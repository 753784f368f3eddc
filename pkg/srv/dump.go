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
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"jinr.ru/greenlab/go-xrit/pkg/layers"
	"jinr.ru/greenlab/go-xrit/pkg/log"
)

// Dump appends received frames to a file that can be replayed with the file input
type Dump struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
	frames int
}

func NewDump(path string) (*Dump, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	log.Info("Dumping frames to %s", path)
	return &Dump{
		path:   path,
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Write stores one frame, fill frames and frames of a wrong length are skipped
func (d *Dump) Write(frame []byte) error {
	if len(frame) != layers.FrameLength || frame[1]&0x3f == layers.FillVCID {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.writer.Write(frame); err != nil {
		return err
	}
	d.frames++
	return nil
}

// Frames is the number of frames written
func (d *Dump) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *Dump) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		d.file.Close()
		return err
	}
	log.Info("Dumped %d frames to %s", d.frames, d.path)
	return d.file.Close()
}
