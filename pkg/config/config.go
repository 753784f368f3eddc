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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type RxConfig struct {
	Spacecraft     string        `json:"spacecraft" yaml:"spacecraft"`
	Mode           string        `json:"mode" yaml:"mode"`
	Input          string        `json:"input" yaml:"input"`
	Keys           string        `json:"keys" yaml:"keys"`
	SessionTimeout time.Duration `json:"session_timeout" yaml:"session_timeout"`
}

type PeerConfig struct {
	Address string `json:"address" yaml:"address"`
	Port    int    `json:"port" yaml:"port"`
}

func (p *PeerConfig) HostPort() string {
	return fmt.Sprintf("%s:%d", p.Address, p.Port)
}

// VCIDList accepts either a single integer or a list of integers
type VCIDList []int

func (l *VCIDList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single int
	if err := unmarshal(&single); err == nil {
		*l = VCIDList{single}
		return nil
	}
	var list []int
	if err := unmarshal(&list); err != nil {
		return ErrConfig{What: "ignore_vcids must be an integer or a list of integers"}
	}
	*l = list
	return nil
}

type OutputConfig struct {
	Path        string   `json:"path" yaml:"path"`
	Images      bool     `json:"images" yaml:"images"`
	XRIT        bool     `json:"xrit" yaml:"xrit"`
	IgnoreVCIDs VCIDList `json:"ignore_vcids" yaml:"ignore_vcids"`
}

type DashboardConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	Address         string        `json:"address" yaml:"address"`
	Port            int           `json:"port" yaml:"port"`
	Interval        time.Duration `json:"interval" yaml:"interval"`
	PreviewInterval time.Duration `json:"preview_interval" yaml:"preview_interval"`
}

type CatalogConfig struct {
	Path string `json:"path" yaml:"path"`
}

type MQTTConfig struct {
	Broker   string `json:"broker,omitempty" yaml:"broker,omitempty"`
	Topic    string `json:"topic" yaml:"topic"`
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	QoS      byte   `json:"qos" yaml:"qos"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

type Config struct {
	Rx        *RxConfig        `json:"rx" yaml:"rx"`
	Goesrecv  *PeerConfig      `json:"goesrecv" yaml:"goesrecv"`
	OSP       *PeerConfig      `json:"osp" yaml:"osp"`
	UDP       *PeerConfig      `json:"udp" yaml:"udp"`
	Output    *OutputConfig    `json:"output" yaml:"output"`
	Dashboard *DashboardConfig `json:"dashboard" yaml:"dashboard"`
	Catalog   *CatalogConfig   `json:"catalog" yaml:"catalog"`
	MQTT      *MQTTConfig      `json:"mqtt" yaml:"mqtt"`
	Logging   *LoggingConfig   `json:"logging" yaml:"logging"`
	filepath  string
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file on top of the current values.
// A missing file is not an error, defaults stay in place.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return ErrConfig{What: fmt.Sprintf("%s: %s", c.filepath, err)}
	}
	return nil
}

// SetPath changes the file used by Load and Persist
func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Path() string {
	return c.filepath
}

// Normalize upper/lower cases enumerations and clamps intervals
func (c *Config) Normalize() {
	c.Rx.Spacecraft = strings.ToUpper(c.Rx.Spacecraft)
	c.Rx.Mode = strings.ToUpper(c.Rx.Mode)
	c.Rx.Input = strings.ToLower(c.Rx.Input)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Dashboard.Interval < MinDashInterval {
		c.Dashboard.Interval = MinDashInterval
	}
	if c.Dashboard.PreviewInterval <= 0 {
		c.Dashboard.PreviewInterval = DefaultPreviewInterval
	}
	if c.Rx.SessionTimeout <= 0 {
		c.Rx.SessionTimeout = DefaultSessionTimeout
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = DefaultMQTTTopic
	}
}

func (c *Config) Validate() error {
	switch c.Rx.Mode {
	case DownlinkLRIT, DownlinkHRIT:
	default:
		return ErrConfig{What: fmt.Sprintf("unknown downlink mode %q", c.Rx.Mode)}
	}
	switch c.Rx.Input {
	case InputGoesrecv, InputOSP, InputUDP, InputFile:
	default:
		return ErrConfig{What: fmt.Sprintf("unknown input %q", c.Rx.Input)}
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		return ErrConfig{What: "dashboard port must be between 1 and 65535"}
	}
	for _, vcid := range c.Output.IgnoreVCIDs {
		if vcid < 0 || vcid > 63 {
			return ErrConfig{What: fmt.Sprintf("ignored VCID %d out of range 0-63", vcid)}
		}
	}
	if c.Output.Path == "" {
		return ErrConfig{What: "output path is empty"}
	}
	if c.MQTT.QoS > 2 {
		return ErrConfig{What: "mqtt qos must be 0, 1 or 2"}
	}
	return nil
}

// DownlinkPath is the output root for the configured downlink, e.g. received/LRIT
func (c *Config) DownlinkPath() string {
	return filepath.Join(c.Output.Path, c.Rx.Mode)
}

func (c *Config) CatalogPath() string {
	if c.Catalog.Path != "" {
		return c.Catalog.Path
	}
	return filepath.Join(c.Output.Path, DefaultCatalogFile)
}

func (c *Config) DashboardAddr() string {
	return fmt.Sprintf("%s:%d", c.Dashboard.Address, c.Dashboard.Port)
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		Rx: &RxConfig{
			Spacecraft:     DefaultSpacecraft,
			Mode:           DefaultDownlink,
			Input:          DefaultInput,
			Keys:           DefaultKeysPath,
			SessionTimeout: DefaultSessionTimeout,
		},
		Goesrecv: &PeerConfig{
			Address: DefaultGoesrecvAddress,
			Port:    DefaultGoesrecvPort,
		},
		OSP: &PeerConfig{
			Address: DefaultOSPAddress,
			Port:    DefaultOSPPort,
		},
		UDP: &PeerConfig{
			Address: DefaultUDPAddress,
			Port:    DefaultUDPPort,
		},
		Output: &OutputConfig{
			Path:        DefaultOutputPath,
			Images:      true,
			XRIT:        true,
			IgnoreVCIDs: VCIDList{},
		},
		Dashboard: &DashboardConfig{
			Enabled:         true,
			Address:         DefaultDashAddress,
			Port:            DefaultDashPort,
			Interval:        DefaultDashInterval,
			PreviewInterval: DefaultPreviewInterval,
		},
		Catalog: &CatalogConfig{},
		MQTT: &MQTTConfig{
			Topic: DefaultMQTTTopic,
			QoS:   DefaultMQTTQoS,
		},
		Logging: &LoggingConfig{
			Level: DefaultLogLevel,
		},
		filepath: DefaultConfigPath(),
	}
}
