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

package status

import (
	"strings"
	"sync"
	"time"
)

// Registry holds everything the dashboard and the API are allowed to see.
// The engine and the materializer are the only writers. Readers get copies.
type Registry struct {
	mu sync.RWMutex

	vcid         int
	progress     map[int]Progress
	latestImage  *Image
	latestImages map[string]Image
	partials     map[string]Partial
	latestFile   *File
	abandoned    *Abandonment
	stats        Stats
}

func NewRegistry() *Registry {
	return &Registry{
		vcid:         NoVCID,
		progress:     make(map[int]Progress),
		latestImages: make(map[string]Image),
		partials:     make(map[string]Partial),
		stats:        Stats{Started: time.Now()},
	}
}

// categories are stored upper case, lookups are case insensitive
func key(category string) string {
	return strings.ToUpper(category)
}

func (r *Registry) SetCurrentVCID(vcid int) {
	r.mu.Lock()
	r.vcid = vcid
	r.mu.Unlock()
}

func (r *Registry) SetProgress(p Progress) {
	r.mu.Lock()
	r.progress[p.VCID] = p
	r.mu.Unlock()
}

func (r *Registry) ClearProgress(vcid int) {
	r.mu.Lock()
	delete(r.progress, vcid)
	r.mu.Unlock()
}

// SetLatestImage replaces the latest image of its category and the latest image overall
func (r *Registry) SetLatestImage(img Image) {
	img.Category = key(img.Category)
	r.mu.Lock()
	r.latestImages[img.Category] = img
	r.latestImage = &img
	r.stats.Images++
	r.mu.Unlock()
}

// RestoreImage puts back an image known from a previous run without counting it.
// The latest image overall is only replaced by a newer one.
func (r *Registry) RestoreImage(img Image) {
	img.Category = key(img.Category)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.latestImages[img.Category]; ok {
		return
	}
	r.latestImages[img.Category] = img
	if r.latestImage == nil || img.Time.After(r.latestImage.Time) {
		r.latestImage = &img
	}
}

func (r *Registry) SetLatestFile(f File) {
	r.mu.Lock()
	r.latestFile = &f
	r.mu.Unlock()
}

func (r *Registry) SetPartial(p Partial) {
	p.Category = key(p.Category)
	r.mu.Lock()
	r.partials[p.Category] = p
	r.mu.Unlock()
}

func (r *Registry) ClearPartial(category string) {
	r.mu.Lock()
	delete(r.partials, key(category))
	r.mu.Unlock()
}

// ClearPartialGroup removes the partial image of category only if it belongs to group
func (r *Registry) ClearPartialGroup(category, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.partials[key(category)]; ok && p.Group == group {
		delete(r.partials, key(category))
	}
}

// SetAbandoned records a dropped product and counts it
func (r *Registry) SetAbandoned(a Abandonment) {
	r.mu.Lock()
	r.abandoned = &a
	r.stats.Abandoned++
	r.mu.Unlock()
}

func (r *Registry) count(f func(s *Stats)) {
	r.mu.Lock()
	f(&r.stats)
	r.mu.Unlock()
}

func (r *Registry) CountFrame()       { r.count(func(s *Stats) { s.Frames++ }) }
func (r *Registry) CountFill()        { r.count(func(s *Stats) { s.FillFrames++ }) }
func (r *Registry) CountIgnored()     { r.count(func(s *Stats) { s.IgnoredFrames++ }) }
func (r *Registry) CountInvalid()     { r.count(func(s *Stats) { s.InvalidFrames++ }) }
func (r *Registry) CountGap()         { r.count(func(s *Stats) { s.Gaps++ }) }
func (r *Registry) CountPacket()      { r.count(func(s *Stats) { s.Packets++ }) }
func (r *Registry) CountCRCError()    { r.count(func(s *Stats) { s.CRCErrors++ }) }
func (r *Registry) CountCompleted()   { r.count(func(s *Stats) { s.Completed++ }) }
func (r *Registry) CountUndecrypted() { r.count(func(s *Stats) { s.Undecrypted++ }) }

func (r *Registry) CurrentVCID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vcid
}

// Progress returns the product under reassembly on vcid
func (r *Registry) Progress(vcid int) (Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.progress[vcid]
	return p, ok
}

func (r *Registry) AllProgress() map[int]Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]Progress, len(r.progress))
	for k, v := range r.progress {
		out[k] = v
	}
	return out
}

// LatestImage returns the latest image of the category, or of any category when category is empty
func (r *Registry) LatestImage(category string) (Image, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if category == "" {
		if r.latestImage == nil {
			return Image{}, false
		}
		return *r.latestImage, true
	}
	img, ok := r.latestImages[key(category)]
	return img, ok
}

func (r *Registry) LatestImages() map[string]Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Image, len(r.latestImages))
	for k, v := range r.latestImages {
		out[k] = v
	}
	return out
}

func (r *Registry) Partial(category string) (Partial, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partials[key(category)]
	return p, ok
}

func (r *Registry) Partials() map[string]Partial {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Partial, len(r.partials))
	for k, v := range r.partials {
		out[k] = v
	}
	return out
}

func (r *Registry) LatestFile() (File, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latestFile == nil {
		return File{}, false
	}
	return *r.latestFile, true
}

func (r *Registry) LastAbandoned() (Abandonment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.abandoned == nil {
		return Abandonment{}, false
	}
	return *r.abandoned, true
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Snapshot copies the whole registry under one read lock
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		CurrentVCID:  r.vcid,
		Progress:     make(map[int]Progress, len(r.progress)),
		LatestImages: make(map[string]Image, len(r.latestImages)),
		Partials:     make(map[string]Partial, len(r.partials)),
		Stats:        r.stats,
		Time:         time.Now(),
	}
	for k, v := range r.progress {
		s.Progress[k] = v
	}
	for k, v := range r.latestImages {
		s.LatestImages[k] = v
	}
	for k, v := range r.partials {
		s.Partials[k] = v
	}
	if r.latestImage != nil {
		img := *r.latestImage
		s.LatestImage = &img
	}
	if r.latestFile != nil {
		f := *r.latestFile
		s.LatestFile = &f
	}
	if r.abandoned != nil {
		a := *r.abandoned
		s.LastAbandoned = &a
	}
	return s
}
