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

package demux

import (
	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-xrit/pkg/layers"
)

// DecodeFrame splits a frame into its VCDU and M_PDU layers.
// It does not copy data, the layers are only valid while data is.
func DecodeFrame(data []byte) (*layers.VCDULayer, *layers.MPDULayer, error) {
	if len(data) != layers.FrameLength {
		return nil, nil, layers.ErrInvalidFrameLength{Length: len(data)}
	}
	packet := gopacket.NewPacket(data, layers.VCDULayerType, gopacket.NoCopy)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, nil, errLayer.Error()
	}
	vcduLayer := packet.Layer(layers.VCDULayerType)
	mpduLayer := packet.Layer(layers.MPDULayerType)
	if vcduLayer == nil || mpduLayer == nil {
		return nil, nil, layers.ErrInvalidFrameLength{Length: len(data)}
	}
	return vcduLayer.(*layers.VCDULayer), mpduLayer.(*layers.MPDULayer), nil
}
