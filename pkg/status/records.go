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

import "time"

// NoVCID is reported before the first frame arrives
const NoVCID = -1

// Progress describes a product under reassembly on one virtual channel
type Progress struct {
	VCID     int       `json:"vcid"`
	Name     string    `json:"name"`
	Received uint64    `json:"received"`
	Length   uint64    `json:"length"`
	Percent  float64   `json:"percent"`
	Started  time.Time `json:"started"`
	Updated  time.Time `json:"updated"`
}

// Image is the most recent decoded image of a category
type Image struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	ImagePath string    `json:"image"`
	RawPath   string    `json:"xrit,omitempty"`
	Hash      string    `json:"hash"`
	Composite bool      `json:"composite,omitempty"`
	Time      time.Time `json:"time"`
}

// Partial is a preview of an image which is not complete yet
type Partial struct {
	Category string    `json:"category"`
	Group    string    `json:"group"`
	Path     string    `json:"path"`
	Segments int       `json:"segments"`
	Total    int       `json:"total"`
	Time     time.Time `json:"time"`
}

// File is the most recent xRIT file written to disk
type File struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	Encrypted bool      `json:"encrypted"`
	Time      time.Time `json:"time"`
}

// Abandonment records the last product which was dropped before completion
type Abandonment struct {
	VCID     int       `json:"vcid"`
	Name     string    `json:"name"`
	Reason   string    `json:"reason"`
	Received uint64    `json:"received"`
	Length   uint64    `json:"length"`
	Time     time.Time `json:"time"`
}

type Stats struct {
	Frames        uint64    `json:"frames"`
	FillFrames    uint64    `json:"fill_frames"`
	IgnoredFrames uint64    `json:"ignored_frames"`
	InvalidFrames uint64    `json:"invalid_frames"`
	Gaps          uint64    `json:"gaps"`
	Packets       uint64    `json:"packets"`
	CRCErrors     uint64    `json:"crc_errors"`
	Completed     uint64    `json:"completed"`
	Abandoned     uint64    `json:"abandoned"`
	Undecrypted   uint64    `json:"undecrypted"`
	Images        uint64    `json:"images"`
	Started       time.Time `json:"started"`
}

// Snapshot is a consistent copy of the whole registry
type Snapshot struct {
	CurrentVCID   int                `json:"vcid"`
	Progress      map[int]Progress   `json:"progress"`
	LatestImage   *Image             `json:"latest_image,omitempty"`
	LatestImages  map[string]Image   `json:"latest_images"`
	Partials      map[string]Partial `json:"partials"`
	LatestFile    *File              `json:"latest_file,omitempty"`
	LastAbandoned *Abandonment       `json:"last_abandoned,omitempty"`
	Stats         Stats              `json:"stats"`
	Time          time.Time          `json:"time"`
}
