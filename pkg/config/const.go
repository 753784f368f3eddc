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

import "time"

const (
	ConfigDir  = ".go-xrit"
	ConfigFile = "config"
	Version    = "2.1.0"

	DefaultSpacecraft      = "GK-2A"
	DefaultDownlink        = DownlinkLRIT
	DefaultInput           = InputGoesrecv
	DefaultKeysPath        = "EncryptionKeyMessage.bin"
	DefaultSessionTimeout  = 5 * time.Minute
	DefaultGoesrecvAddress = "127.0.0.1"
	DefaultGoesrecvPort    = 5004
	DefaultOSPAddress      = "127.0.0.1"
	DefaultOSPPort         = 5001
	DefaultUDPAddress      = "0.0.0.0"
	DefaultUDPPort         = 5002
	DefaultOutputPath      = "received"
	DefaultDashAddress     = "0.0.0.0"
	DefaultDashPort        = 1692
	DefaultDashInterval    = 1 * time.Second
	DefaultPreviewInterval = 10 * time.Second
	DefaultCatalogFile     = "catalog.db"
	DefaultMQTTTopic       = "xrit/products"
	DefaultMQTTQoS         = 0
	DefaultLogLevel        = "info"
)

const (
	DownlinkLRIT = "LRIT"
	DownlinkHRIT = "HRIT"
)

const (
	InputGoesrecv = "goesrecv"
	InputOSP      = "osp"
	InputUDP      = "udp"
	InputFile     = "file"
)

// MinDashInterval is the lower bound for the dashboard refresh interval
const MinDashInterval = 1 * time.Second
