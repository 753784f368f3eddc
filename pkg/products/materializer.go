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

package products

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/crypt"
	"jinr.ru/greenlab/go-xrit/pkg/demux"
	"jinr.ru/greenlab/go-xrit/pkg/layers"
	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

const (
	// EncryptedSuffix marks xRIT files saved without decryption
	EncryptedSuffix = ".enc"
	ImageSuffix     = ".jpg"
	TextSuffix      = ".txt"
	jpegQuality     = 95
)

// Result describes the files written for one product
type Result struct {
	Name     string
	Category Category
	VCID     uint8
	// Path is the xRIT file, empty when xRIT output is disabled
	Path string
	// Derived is the decoded image, text or additional data file
	Derived string
	// Composite is the stitched image completed by this segment
	Composite string
	// Image is the file published as latest image of the category, if any
	Image       string
	Hash        string
	Size        int64
	Undecrypted bool
	Time        time.Time
}

// Listener is told about every product written to disk
type Listener interface {
	ProductSaved(r *Result)
}

// Materializer writes completed products to the output tree and updates the registry
type Materializer struct {
	root      string
	images    bool
	xrit      bool
	keys      crypt.Keys
	registry  *status.Registry
	mosaic    *Mosaic
	listeners []Listener
	now       func() time.Time

	// mu orders partial previews against completed images
	mu sync.Mutex
	// finished is the last group completed per category
	finished map[Category]string
}

func NewMaterializer(cfg *config.Config, keys crypt.Keys, registry *status.Registry) *Materializer {
	return &Materializer{
		root:     cfg.DownlinkPath(),
		images:   cfg.Output.Images,
		xrit:     cfg.Output.XRIT,
		keys:     keys,
		registry: registry,
		mosaic:   NewMosaic(),
		now:      time.Now,
		finished: make(map[Category]string),
	}
}

func (m *Materializer) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Mosaic gives the previewer access to the segments received so far
func (m *Materializer) Mosaic() *Mosaic {
	return m.mosaic
}

func (m *Materializer) Root() string {
	return m.root
}

// HandleProduct is called by the demultiplexer for every completed product
func (m *Materializer) HandleProduct(p *demux.Product) error {
	_, err := m.Materialize(p)
	return err
}

// Hash is the hex encoded BLAKE2b-256 digest of data
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// safeName keeps only the last element of a file name announced by the downlink
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "unnamed"
	}
	return name
}

// Dir is the directory of a category for the day of t
func (m *Materializer) Dir(category Category, t time.Time) string {
	return filepath.Join(m.root, t.Format("20060102"), category.String())
}

func (m *Materializer) Materialize(p *demux.Product) (*Result, error) {
	now := m.now()
	file := p.Data
	h := p.Header
	name := safeName(p.Name())

	category := CategoryXRIT
	if h != nil {
		category = Classify(name, h.FileType)
	}
	res := &Result{
		Name:     name,
		Category: category,
		VCID:     p.VCID,
		Time:     now,
	}

	undecrypted := false
	if p.Encrypted() {
		data := h.DataField(file)
		if plain, ok := m.keys.Decrypt(data, h.KeyIndex); ok {
			copy(data, plain)
			h.ClearKeyIndex(file)
		} else {
			undecrypted = true
		}
	}

	dir := m.Dir(category, ProductTime(name, h, now))
	res.Hash = Hash(file)
	res.Size = int64(len(file))

	if undecrypted {
		res.Undecrypted = true
		res.Path = filepath.Join(dir, name+EncryptedSuffix)
		if err := writeFile(res.Path, file); err != nil {
			return nil, err
		}
		m.registry.CountUndecrypted()
		log.Warning("No key %04X for %s, saved encrypted", h.KeyIndex, name)
		m.saved(res)
		return res, nil
	}

	if m.xrit {
		res.Path = filepath.Join(dir, name)
		if err := writeFile(res.Path, file); err != nil {
			return nil, err
		}
	}

	var err error
	switch category {
	case CategoryFD, CategoryENH, CategoryLSH, CategoryLA, CategoryELA:
		if m.images {
			err = m.saveImage(res, h, file, dir)
		}
	case CategoryText:
		res.Derived = filepath.Join(dir, name+TextSuffix)
		err = writeFile(res.Derived, h.DataField(file))
	case CategoryAdditional:
		err = m.saveAdditional(res, h.DataField(file), dir)
	case CategoryXRIT:
	}
	if err != nil {
		return nil, err
	}

	m.saved(res)
	return res, nil
}

func (m *Materializer) saved(res *Result) {
	log.WithFields(log.Fields{
		"name":     res.Name,
		"category": res.Category.String(),
		"vcid":     res.VCID,
		"size":     res.Size,
		"hash":     res.Hash,
	}).Info("Product saved")

	m.registry.SetLatestFile(status.File{
		Name:      res.Name,
		Category:  res.Category.String(),
		Path:      res.Path,
		Hash:      res.Hash,
		Size:      res.Size,
		Encrypted: res.Undecrypted,
		Time:      res.Time,
	})
	for _, l := range m.listeners {
		l.ProductSaved(res)
	}
}

func (m *Materializer) saveImage(res *Result, h *layers.XRITHeader, file []byte, dir string) error {
	img, format, err := image.Decode(bytes.NewReader(h.DataField(file)))
	if err != nil {
		log.Warning("Can not decode image %s: %s", res.Name, err)
		return nil
	}
	log.Debug("Decoded %s image %s (%dx%d)", format, res.Name, img.Bounds().Dx(), img.Bounds().Dy())

	if seg, ok := SegmentOf(res.Name, res.Category, h); ok {
		if !m.mosaic.Add(seg, res.Category, dir, img) {
			return nil
		}
		return m.saveComposite(res, seg, dir)
	}

	encoded, err := encodeJPEG(img)
	if err != nil {
		log.Warning("Can not encode image %s: %s", res.Name, err)
		return nil
	}
	res.Derived = filepath.Join(dir, res.Name+ImageSuffix)
	if err := writeFile(res.Derived, encoded); err != nil {
		return err
	}
	res.Image = res.Derived
	m.publish(res.Category, baseName(res.Name), status.Image{
		Name:      res.Name,
		Category:  res.Category.String(),
		ImagePath: res.Derived,
		RawPath:   res.Path,
		Hash:      res.Hash,
		Time:      res.Time,
	})
	return nil
}

// publish makes img the latest image of its category and retires the partial of group
func (m *Materializer) publish(category Category, group string, img status.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[category] = group
	m.registry.ClearPartialGroup(category.String(), group)
	m.registry.SetLatestImage(img)
}

// publishPartial sets the partial image unless its group was completed meanwhile
func (m *Materializer) publishPartial(category Category, p status.Partial) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished[category] == p.Group {
		return false
	}
	m.registry.SetPartial(p)
	return true
}

// retirePartial drops the partial image of a group which is no longer received
func (m *Materializer) retirePartial(category Category, group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.ClearPartialGroup(category.String(), group)
}

func (m *Materializer) saveComposite(res *Result, seg Segment, dir string) error {
	defer m.mosaic.Remove(seg.Group)
	img, count, ok := m.mosaic.Compose(seg.Group, nil)
	if !ok {
		return nil
	}
	encoded, err := encodeJPEG(img)
	if err != nil {
		log.Warning("Can not encode image %s: %s", seg.Group, err)
		return nil
	}
	res.Composite = filepath.Join(dir, seg.Group+ImageSuffix)
	if err := writeFile(res.Composite, encoded); err != nil {
		return err
	}
	log.Info("Stitched %d segments into %s", count, res.Composite)
	res.Image = res.Composite
	m.publish(res.Category, seg.Group, status.Image{
		Name:      seg.Group,
		Category:  res.Category.String(),
		ImagePath: res.Composite,
		RawPath:   res.Path,
		Hash:      Hash(encoded),
		Composite: true,
		Time:      res.Time,
	})
	return nil
}

// saveAdditional writes the data field with an extension matching its content.
// Additional data images are published as latest image of their category.
func (m *Materializer) saveAdditional(res *Result, data []byte, dir string) error {
	ext := ".bin"
	isImage := false
	switch contentType := http.DetectContentType(data); {
	case contentType == "image/gif":
		ext, isImage = ".gif", true
	case contentType == "image/png":
		ext, isImage = ".png", true
	case contentType == "image/jpeg":
		ext, isImage = ".jpg", true
	case strings.HasPrefix(contentType, "text/plain"):
		ext = TextSuffix
	}
	res.Derived = filepath.Join(dir, res.Name+ext)
	if err := writeFile(res.Derived, data); err != nil {
		return err
	}
	if isImage && m.images {
		res.Image = res.Derived
		m.registry.SetLatestImage(status.Image{
			Name:      res.Name,
			Category:  res.Category.String(),
			ImagePath: res.Derived,
			RawPath:   res.Path,
			Hash:      res.Hash,
			Time:      res.Time,
		})
	}
	return nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
