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
	"image"
	"os"
	"path/filepath"

	"jinr.ru/greenlab/go-xrit/pkg/demux"
	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

const PartialSuffix = "_partial" + ImageSuffix

// Previewer renders images that are still being received.
// It only uses copies handed out by the engine and never blocks reception.
type Previewer struct {
	m        *Materializer
	rendered map[string]preview
}

// preview is the last partial image written for a group
type preview struct {
	category Category
	segments int
}

func NewPreviewer(m *Materializer) *Previewer {
	return &Previewer{
		m:        m,
		rendered: make(map[string]preview),
	}
}

// Render updates the partial image of every image product in building.
// Any failure keeps the previous partial image. Partials of groups which
// are neither in building nor waiting for more segments are retired.
func (pv *Previewer) Render(building []demux.BuildingImage) {
	now := pv.m.now()
	active := make(map[string]bool, len(building))
	defer pv.retire(active)

	for _, b := range building {
		header := b.Header
		name := safeName(b.Name)
		category := Classify(name, header.FileType)
		if !category.IsImage() {
			continue
		}

		seg, segmented := SegmentOf(name, category, &header)
		if !segmented {
			seg = Segment{Group: baseName(name), Sequence: 1, Total: 1}
		}
		active[seg.Group] = true

		extra := map[int]image.Image{}
		if img, _, err := image.Decode(bytes.NewReader(header.DataField(b.Data))); err == nil {
			extra[seg.Sequence] = img
		} else {
			log.Debug("Partial decode of %s: %s", name, err)
		}

		var img image.Image
		count := 0
		if pv.m.mosaic.Has(seg.Group) {
			img, count, _ = pv.m.mosaic.Compose(seg.Group, extra)
		} else if len(extra) > 0 {
			img, count = stitch(extra, seg.Total), len(extra)
		}
		if img == nil {
			continue
		}
		if last, ok := pv.rendered[seg.Group]; ok && len(extra) == 0 && last.segments == count {
			continue
		}

		path := filepath.Join(pv.m.Dir(category, ProductTime(name, &header, now)), seg.Group+PartialSuffix)
		if err := writePartial(path, img); err != nil {
			log.Warning("Can not write partial image %s: %s", path, err)
			continue
		}
		published := pv.m.publishPartial(category, status.Partial{
			Category: category.String(),
			Group:    seg.Group,
			Path:     path,
			Segments: count,
			Total:    seg.Total,
			Time:     now,
		})
		if !published {
			log.Debug("Group %s completed while rendering its partial image", seg.Group)
			delete(active, seg.Group)
			continue
		}
		pv.rendered[seg.Group] = preview{category: category, segments: count}
	}
}

func (pv *Previewer) retire(active map[string]bool) {
	for group, p := range pv.rendered {
		if active[group] || pv.m.mosaic.Has(group) {
			continue
		}
		pv.m.retirePartial(p.category, group)
		delete(pv.rendered, group)
	}
}

// writePartial replaces path atomically so that readers never see a half written image
func writePartial(path string, img image.Image) error {
	encoded, err := encodeJPEG(img)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, encoded); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
