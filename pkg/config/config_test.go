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

package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v2"
)

func TestVCIDList(t *testing.T) {
	for text, want := range map[string]VCIDList{
		"ignore_vcids: 63":      {63},
		"ignore_vcids: [0, 63]": {0, 63},
		"ignore_vcids: []":      {},
	} {
		var out OutputConfig
		if err := yaml.Unmarshal([]byte(text), &out); err != nil {
			t.Fatalf("%s: %s", text, err)
		}
		if diff := cmp.Diff(want, out.IgnoreVCIDs, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s (-want +got):\n%s", text, diff)
		}
	}
	var out OutputConfig
	if err := yaml.Unmarshal([]byte("ignore_vcids: all"), &out); err == nil {
		t.Error("string accepted as VCID list")
	}
}

func TestNormalize(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Rx.Mode = "hrit"
	cfg.Rx.Input = "UDP"
	cfg.Rx.Spacecraft = "gk-2a"
	cfg.Dashboard.Interval = 100 * time.Millisecond
	cfg.Dashboard.PreviewInterval = 0
	cfg.MQTT.Topic = ""
	cfg.Normalize()
	if cfg.Rx.Mode != DownlinkHRIT || cfg.Rx.Input != InputUDP || cfg.Rx.Spacecraft != "GK-2A" {
		t.Errorf("rx = %+v", cfg.Rx)
	}
	if cfg.Dashboard.Interval != MinDashInterval || cfg.Dashboard.PreviewInterval != DefaultPreviewInterval {
		t.Errorf("dashboard = %+v", cfg.Dashboard)
	}
	if cfg.MQTT.Topic != DefaultMQTTTopic {
		t.Errorf("topic = %s", cfg.MQTT.Topic)
	}
}

func TestValidate(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults rejected: %s", err)
	}
	for name, broken := range map[string]func(c *Config){
		"mode":   func(c *Config) { c.Rx.Mode = "XRIT" },
		"input":  func(c *Config) { c.Rx.Input = "serial" },
		"port":   func(c *Config) { c.Dashboard.Port = 70000 },
		"vcid":   func(c *Config) { c.Output.IgnoreVCIDs = VCIDList{64} },
		"output": func(c *Config) { c.Output.Path = "" },
		"qos":    func(c *Config) { c.MQTT.QoS = 3 },
	} {
		cfg := NewDefaultConfig()
		broken(cfg)
		var errConfig ErrConfig
		if err := cfg.Validate(); !errors.As(err, &errConfig) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestPersistLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config")
	cfg := NewDefaultConfig()
	cfg.SetPath(path)
	cfg.Rx.Mode = DownlinkHRIT
	cfg.Output.IgnoreVCIDs = VCIDList{0, 63}
	cfg.MQTT.Broker = "tcp://broker:1883"
	if err := cfg.Persist(false); err != nil {
		t.Fatal(err)
	}
	var exists ErrConfigFileExists
	if err := cfg.Persist(false); !errors.As(err, &exists) {
		t.Errorf("second persist: %v", err)
	}

	loaded := NewDefaultConfig()
	loaded.SetPath(path)
	if err := loaded.Load(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loaded, cmp.AllowUnexported(Config{})); diff != "" {
		t.Errorf("reloaded config (-want +got):\n%s", diff)
	}

	missing := NewDefaultConfig()
	missing.SetPath(filepath.Join(t.TempDir(), "none"))
	if err := missing.Load(); err != nil {
		t.Errorf("missing file: %s", err)
	}
	if missing.Rx.Mode != DefaultDownlink {
		t.Error("defaults lost")
	}
}

func TestPaths(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Path = "/data"
	if got := cfg.DownlinkPath(); got != filepath.Join("/data", "LRIT") {
		t.Errorf("downlink path %s", got)
	}
	if got := cfg.CatalogPath(); got != filepath.Join("/data", DefaultCatalogFile) {
		t.Errorf("catalog path %s", got)
	}
	cfg.Catalog.Path = "/var/lib/xrit.db"
	if got := cfg.CatalogPath(); got != "/var/lib/xrit.db" {
		t.Errorf("catalog path %s", got)
	}
	if got := cfg.DashboardAddr(); got != "0.0.0.0:1692" {
		t.Errorf("dashboard %s", got)
	}
}
