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
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jinr.ru/greenlab/go-xrit/pkg/products"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestListNewestFirst(t *testing.T) {
	s := newTestState(t)
	for i := 0; i < 5; i++ {
		r := &Record{
			Name:     fmt.Sprintf("IMG_FD_%03d.lrit", i),
			Category: "FD",
			Hash:     fmt.Sprintf("%02x", i),
			Size:     int64(i),
			Time:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Record(r); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.List("fd", 3)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range records {
		names = append(names, r.Name)
	}
	want := []string{"IMG_FD_004.lrit", "IMG_FD_003.lrit", "IMG_FD_002.lrit"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}

	all, err := s.List("FD", 0)
	if err != nil || len(all) != 5 {
		t.Errorf("got %d records, %v", len(all), err)
	}
	if empty, err := s.List("ANT", 0); err != nil || len(empty) != 0 {
		t.Errorf("ANT: %v %v", empty, err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	s := newTestState(t)
	want := &Record{
		Name:      "ADD_SICEF24.lrit",
		Category:  "ADD",
		VCID:      4,
		Path:      "/out/ADD_SICEF24.lrit",
		Derived:   "/out/ADD_SICEF24.lrit.png",
		Image:     "/out/ADD_SICEF24.lrit.png",
		Hash:      "abcd",
		Size:      1234,
		Encrypted: true,
		Time:      base,
	}
	if err := s.Record(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Latest("ADD")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record (-want +got):\n%s", diff)
	}
}

func TestUnknownCategory(t *testing.T) {
	s := newTestState(t)
	err := s.Record(&Record{Name: "x", Category: "NOPE", Time: base})
	var notFound ErrBucketNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("got %v", err)
	}
	if r, err := s.Latest("FD"); r != nil || err != nil {
		t.Errorf("empty catalog: %v %v", r, err)
	}
}

func TestProductSavedAndSeed(t *testing.T) {
	s := newTestState(t)
	s.ProductSaved(&products.Result{
		Name:     "IMG_FD_001.lrit",
		Category: products.CategoryFD,
		Path:     "/out/IMG_FD_001.lrit",
		Derived:  "/out/IMG_FD_001.lrit.jpg",
		Image:    "/out/IMG_FD_001.lrit.jpg",
		Hash:     "01",
		Time:     base,
	})
	// a later segment without an image must not hide the published one
	s.ProductSaved(&products.Result{
		Name:     "IMG_FD_002_03.lrit",
		Category: products.CategoryFD,
		Path:     "/out/IMG_FD_002_03.lrit",
		Hash:     "02",
		Time:     base.Add(time.Minute),
	})
	s.ProductSaved(&products.Result{
		Name:     "IMG_ENH_001.lrit",
		Category: products.CategoryENH,
		Image:    "/out/IMG_ENH_001.lrit.jpg",
		Hash:     "03",
		Time:     base.Add(2 * time.Minute),
	})

	counts, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if counts["FD"] != 2 || counts["ENH"] != 1 || counts["ANT"] != 0 {
		t.Errorf("counts = %v", counts)
	}

	registry := status.NewRegistry()
	if err := s.Seed(registry); err != nil {
		t.Fatal(err)
	}
	fd, ok := registry.LatestImage("FD")
	if !ok || fd.Hash != "01" || fd.ImagePath != "/out/IMG_FD_001.lrit.jpg" {
		t.Errorf("FD = %+v", fd)
	}
	overall, ok := registry.LatestImage("")
	if !ok || overall.Category != "ENH" {
		t.Errorf("latest overall = %+v", overall)
	}
	if registry.Stats().Images != 0 {
		t.Error("restored images must not be counted as received")
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := NewState(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(&Record{Name: "ANT_1.lrit", Category: "ANT", Time: base}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewState(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if r, err := s.Latest("ANT"); err != nil || r == nil || r.Name != "ANT_1.lrit" {
		t.Errorf("got %+v %v", r, err)
	}
}
