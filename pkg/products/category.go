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
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jinr.ru/greenlab/go-xrit/pkg/layers"
)

type Category int

const (
	CategoryXRIT Category = iota
	CategoryText
	CategoryAdditional
	CategoryFD
	CategoryENH
	CategoryLSH
	CategoryLA
	CategoryELA
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryFD, CategoryENH, CategoryLSH, CategoryLA, CategoryELA,
	CategoryAdditional, CategoryText, CategoryXRIT,
}

func (c Category) String() string {
	switch c {
	case CategoryXRIT:
		return "XRIT"
	case CategoryText:
		return "ANT"
	case CategoryAdditional:
		return "ADD"
	case CategoryFD:
		return "FD"
	case CategoryENH:
		return "ENH"
	case CategoryLSH:
		return "LSH"
	case CategoryLA:
		return "LA"
	case CategoryELA:
		return "ELA"
	}
	return "UNKNOWN"
}

// IsImage reports whether products of the category are observation images
func (c Category) IsImage() bool {
	switch c {
	case CategoryFD, CategoryENH, CategoryLSH, CategoryLA, CategoryELA:
		return true
	case CategoryXRIT, CategoryText, CategoryAdditional:
		return false
	}
	return false
}

// ParseCategory accepts category names in any case
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(c.String(), s) {
			return c, true
		}
	}
	return CategoryXRIT, false
}

// segmentsPerImage is the number of segments of a complete LRIT observation
var segmentsPerImage = map[Category]int{
	CategoryFD: 10,
}

// Classify sorts a product by its file name, e.g. IMG_FD_047_IR105_20190907_000000_01.lrit,
// falling back to the xRIT file type.
func Classify(name string, fileType uint8) Category {
	parts := strings.Split(baseName(name), "_")
	switch parts[0] {
	case "IMG":
		if len(parts) > 1 {
			if c, ok := ParseCategory(parts[1]); ok && c.IsImage() {
				return c
			}
		}
	case "ANT":
		return CategoryText
	case "ADD":
		return CategoryAdditional
	}
	if fileType == layers.FileTypeText {
		return CategoryText
	}
	return CategoryXRIT
}

// baseName strips directories and the extension
func baseName(name string) string {
	name = filepath.Base(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Segment describes the place of an image file in a multi-segment observation
type Segment struct {
	Group    string
	Sequence int
	Total    int
}

var segmentSuffix = regexp.MustCompile(`^(.+)_(\d{2})$`)

// SegmentOf finds the segment group of an image product.
// The segment count comes from the segment identification header when present.
func SegmentOf(name string, category Category, header *layers.XRITHeader) (Segment, bool) {
	m := segmentSuffix.FindStringSubmatch(baseName(name))
	if m == nil {
		return Segment{}, false
	}
	seq, _ := strconv.Atoi(m[2])
	total := segmentsPerImage[category]
	if header != nil && header.Segment != nil && header.Segment.Total > 0 {
		total = int(header.Segment.Total)
	}
	if total <= 1 || seq < 1 || seq > total {
		return Segment{}, false
	}
	return Segment{Group: m[1], Sequence: seq, Total: total}, true
}

var nameDate = regexp.MustCompile(`_(\d{8})_`)

// ProductTime is the observation time of a product: the xRIT time stamp,
// the date in the file name or fallback
func ProductTime(name string, header *layers.XRITHeader, fallback time.Time) time.Time {
	if header != nil && !header.Timestamp.IsZero() {
		return header.Timestamp.UTC()
	}
	if m := nameDate.FindStringSubmatch(name); m != nil {
		if t, err := time.Parse("20060102", m[1]); err == nil {
			return t
		}
	}
	return fallback.UTC()
}
