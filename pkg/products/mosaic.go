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
	"image"
	"image/draw"
	"sync"

	"github.com/kelindar/bitmap"
)

type segmentGroup struct {
	category Category
	dir      string
	total    int
	present  bitmap.Bitmap
	images   map[int]image.Image
}

// Mosaic keeps the decoded segments of multi-segment images until all of them arrived.
// Only the newest group of each category is kept.
type Mosaic struct {
	mu     sync.Mutex
	groups map[string]*segmentGroup
}

func NewMosaic() *Mosaic {
	return &Mosaic{groups: make(map[string]*segmentGroup)}
}

// Add stores a decoded segment and reports whether the group is complete
func (m *Mosaic) Add(seg Segment, category Category, dir string, img image.Image) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[seg.Group]
	if !ok {
		for name, other := range m.groups {
			if other.category == category {
				delete(m.groups, name)
			}
		}
		g = &segmentGroup{
			category: category,
			dir:      dir,
			total:    seg.Total,
			images:   make(map[int]image.Image),
		}
		m.groups[seg.Group] = g
	}
	g.present.Set(uint32(seg.Sequence))
	g.images[seg.Sequence] = img
	return g.present.Count() >= g.total
}

// Compose stitches the segments of group, extra is drawn as well when not nil.
// It returns the image and the number of segments in it.
func (m *Mosaic) Compose(group string, extra map[int]image.Image) (image.Image, int, bool) {
	m.mu.Lock()
	g, ok := m.groups[group]
	var segments map[int]image.Image
	total := 0
	if ok {
		total = g.total
		segments = make(map[int]image.Image, len(g.images)+len(extra))
		for seq, img := range g.images {
			segments[seq] = img
		}
	}
	m.mu.Unlock()

	if !ok {
		return nil, 0, false
	}
	for seq, img := range extra {
		if _, exists := segments[seq]; !exists {
			segments[seq] = img
		}
	}
	img := stitch(segments, total)
	if img == nil {
		return nil, 0, false
	}
	return img, len(segments), true
}

// Has reports whether segments of group are kept
func (m *Mosaic) Has(group string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[group]
	return ok
}

func (m *Mosaic) Remove(group string) {
	m.mu.Lock()
	delete(m.groups, group)
	m.mu.Unlock()
}

// stitch stacks segments vertically, segment 1 on top.
// Missing segments are left black with the height of the first known segment.
func stitch(segments map[int]image.Image, total int) image.Image {
	width, height := 0, 0
	for seq := 1; seq <= total; seq++ {
		img, ok := segments[seq]
		if !ok {
			continue
		}
		b := img.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		if height == 0 {
			height = b.Dy()
		}
	}
	if width == 0 || height == 0 {
		return nil
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height*total))
	for seq := 1; seq <= total; seq++ {
		img, ok := segments[seq]
		if !ok {
			continue
		}
		b := img.Bounds()
		at := image.Rect(0, (seq-1)*height, b.Dx(), (seq-1)*height+b.Dy())
		draw.Draw(out, at, img, b.Min, draw.Src)
	}
	return out
}
