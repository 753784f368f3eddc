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

package command

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"jinr.ru/greenlab/go-xrit/pkg/catalog"
	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/srv"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

func newTestClient(t *testing.T) (*ApiClient, *status.Registry, *catalog.State) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Output.Path = t.TempDir()
	registry := status.NewRegistry()
	cat, err := catalog.NewState(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(cat.Close)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s, err := srv.NewApiServer(ctx, cfg, registry, cat)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(s.Handler(io.Discard))
	t.Cleanup(server.Close)

	c := NewApiClient(cfg)
	c.ApiPrefix = server.URL + "/api"
	return c, registry, cat
}

func TestNewApiClient(t *testing.T) {
	cfg := config.NewDefaultConfig()
	if c := NewApiClient(cfg); c.ApiPrefix != "http://127.0.0.1:1692/api" {
		t.Errorf("prefix %s", c.ApiPrefix)
	}
	cfg.Dashboard.Address = "10.0.0.5"
	cfg.Dashboard.Port = 8080
	if c := NewApiClient(cfg); c.ApiPrefix != "http://10.0.0.5:8080/api" {
		t.Errorf("prefix %s", c.ApiPrefix)
	}
}

func TestClientInfoAndStats(t *testing.T) {
	c, registry, _ := newTestClient(t)
	info, err := c.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Downlink != config.DownlinkLRIT || info.Version != config.Version {
		t.Errorf("info = %+v", info)
	}
	registry.CountFrame()
	registry.CountCompleted()
	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frames != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClientLatest(t *testing.T) {
	c, registry, _ := newTestClient(t)
	img, err := c.Latest("FD")
	if err != nil || img != nil {
		t.Fatalf("before any image: %+v, %v", img, err)
	}
	f, err := c.LatestFile()
	if err != nil || f != nil {
		t.Fatalf("before any file: %+v, %v", f, err)
	}

	registry.SetLatestImage(status.Image{Name: "IMG_ENH_001", Category: "ENH", Time: time.Now()})
	registry.SetLatestFile(status.File{Name: "IMG_ENH_001.lrit", Category: "ENH"})
	if img, err = c.Latest(""); err != nil || img == nil || img.Name != "IMG_ENH_001" {
		t.Errorf("latest = %+v, %v", img, err)
	}
	if img, err = c.Latest("enh"); err != nil || img == nil || img.Category != "ENH" {
		t.Errorf("latest ENH = %+v, %v", img, err)
	}
	if f, err = c.LatestFile(); err != nil || f == nil || f.Name != "IMG_ENH_001.lrit" {
		t.Errorf("latest file = %+v, %v", f, err)
	}
}

func TestClientProducts(t *testing.T) {
	c, registry, cat := newTestClient(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := &catalog.Record{Name: "ANT_" + string(rune('A'+i)), Category: "ANT", Time: base.Add(time.Duration(i) * time.Minute)}
		if err := cat.Record(r); err != nil {
			t.Fatal(err)
		}
	}
	records, err := c.Products("ANT", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0].Name != "ANT_E" || records[2].Name != "ANT_C" {
		t.Errorf("records = %+v", records)
	}

	var unknown ErrUnknownCategory
	if _, err := c.Products("RADAR", 3); !errors.As(err, &unknown) {
		t.Errorf("unknown category: %v", err)
	}

	registry.SetProgress(status.Progress{VCID: 4, Name: "IMG_FD_003"})
	progress, err := c.Progress()
	if err != nil || len(progress) != 1 || progress[0].Name != "IMG_FD_003" {
		t.Errorf("progress = %+v, %v", progress, err)
	}
}
