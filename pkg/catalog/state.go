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

package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/products"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

const (
	BucketNamePrefix = "cat_"
	openTimeout      = 2 * time.Second
)

// Record is one product written to disk
type Record struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	VCID      uint8     `json:"vcid"`
	Path      string    `json:"path,omitempty"`
	Derived   string    `json:"derived,omitempty"`
	Image     string    `json:"image,omitempty"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	Encrypted bool      `json:"encrypted,omitempty"`
	Time      time.Time `json:"time"`
}

func NewRecord(r *products.Result) *Record {
	return &Record{
		Name:      r.Name,
		Category:  r.Category.String(),
		VCID:      r.VCID,
		Path:      r.Path,
		Derived:   r.Derived,
		Image:     r.Image,
		Hash:      r.Hash,
		Size:      r.Size,
		Encrypted: r.Undecrypted,
		Time:      r.Time,
	}
}

// State is the product catalog, one bucket per category keyed by time and name
type State struct {
	DB *bbolt.DB
}

func NewState(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	if err = db.Update(func(tx *bbolt.Tx) error {
		for _, c := range products.Categories {
			if _, err := tx.CreateBucketIfNotExists(bucketName(c.String())); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &State{DB: db}, nil
}

func bucketName(category string) []byte {
	return []byte(BucketNamePrefix + strings.ToUpper(category))
}

// recordKey sorts by time, the name keeps products of the same instant apart
func recordKey(r *Record) []byte {
	return []byte(fmt.Sprintf("%020d_%s", r.Time.UnixNano(), r.Name))
}

func (s *State) Close() {
	s.DB.Close()
}

func (s *State) Record(r *Record) error {
	value, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(r.Category))
		if b == nil {
			return ErrBucketNotFound{Category: r.Category}
		}
		return b.Put(recordKey(r), value)
	})
}

// ProductSaved records every product reported by the materializer
func (s *State) ProductSaved(r *products.Result) {
	if err := s.Record(NewRecord(r)); err != nil {
		log.Warning("Can not record %s in the catalog: %s", r.Name, err)
	}
}

// List returns up to limit records of category, newest first. A limit of 0 lists all.
func (s *State) List(category string, limit int) ([]*Record, error) {
	var records []*Record
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(category))
		if b == nil {
			return ErrBucketNotFound{Category: category}
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			r := &Record{}
			if err := yaml.Unmarshal(v, r); err != nil {
				return ErrRecord{Key: string(k), Err: err}
			}
			records = append(records, r)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return records, nil
}

// Latest is the newest record of category, nil when there is none
func (s *State) Latest(category string) (*Record, error) {
	records, err := s.List(category, 1)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// LatestImage is the newest record of category which was published as an image
func (s *State) LatestImage(category string) (*Record, error) {
	var found *Record
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(category))
		if b == nil {
			return ErrBucketNotFound{Category: category}
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			r := &Record{}
			if err := yaml.Unmarshal(v, r); err != nil {
				return ErrRecord{Key: string(k), Err: err}
			}
			if r.Image != "" {
				found = r
				return nil
			}
		}
		return nil
	})
	return found, err
}

// Count is the number of records per category
func (s *State) Count() (map[string]int, error) {
	counts := make(map[string]int)
	err := s.DB.View(func(tx *bbolt.Tx) error {
		for _, c := range products.Categories {
			if b := tx.Bucket(bucketName(c.String())); b != nil {
				counts[c.String()] = b.Stats().KeyN
			}
		}
		return nil
	})
	return counts, err
}

// Seed restores the latest image of every category into the registry
// so that it survives a restart.
func (s *State) Seed(registry *status.Registry) error {
	for _, c := range products.Categories {
		r, err := s.LatestImage(c.String())
		if err != nil {
			return err
		}
		if r == nil {
			continue
		}
		log.Debug("Restoring latest %s image %s", c, r.Name)
		registry.RestoreImage(status.Image{
			Name:      r.Name,
			Category:  r.Category,
			ImagePath: r.Image,
			RawPath:   r.Path,
			Hash:      r.Hash,
			Time:      r.Time,
		})
	}
	return nil
}
