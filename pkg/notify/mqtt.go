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

package notify

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/log"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MQTTPublisher sends payloads to an MQTT broker
type MQTTPublisher struct {
	broker    string
	clientID  string
	Client    mqtt.Client
	connected atomic.Bool
}

func NewMQTTPublisher(cfg *config.Config) *MQTTPublisher {
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "go-xrit-" + uuid.NewString()
	}
	return &MQTTPublisher{
		broker:   brokerURL(cfg.MQTT.Broker),
		clientID: clientID,
	}
}

// brokerURL adds the tcp scheme to a bare host:port
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect returns once the first connection attempt is done.
// Later losses are repaired by the client in the background.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		p.connected.Store(true)
		log.Info("MQTT connected to %s as %s", p.broker, p.clientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.connected.Store(false)
		log.Warning("MQTT connection to %s lost: %s", p.broker, err)
	}
	p.Client = mqtt.NewClient(opts)

	log.Info("Connecting to MQTT broker %s", p.broker)
	token := p.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return ErrMQTT{What: "connection timeout"}
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.connected.Store(true)
	return nil
}

func (p *MQTTPublisher) Publish(topic string, qos byte, payload []byte) error {
	if p.Client == nil || !p.connected.Load() {
		return ErrMQTT{What: "not connected"}
	}
	token := p.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return ErrMQTT{What: "publish timeout"}
	}
	return token.Error()
}

func (p *MQTTPublisher) Disconnect() {
	if p.Client != nil && p.Client.IsConnected() {
		p.Client.Disconnect(250)
		log.Info("MQTT disconnected")
	}
	p.connected.Store(false)
}
