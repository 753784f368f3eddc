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

package rx

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-xrit/pkg/command"
	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/srv"
)

const (
	FileOptionName        = "file"
	DumpOptionName        = "dump"
	InputOptionName       = "input"
	ModeOptionName        = "mode"
	KeysOptionName        = "keys"
	OutputOptionName      = "output"
	NoDashboardOptionName = "no-dashboard"
)

func NewRxCommand(cfg *config.Config) *cobra.Command {
	var input, mode, keys, output string
	var noDashboard bool
	opts := srv.RxOptions{}
	cmd := &cobra.Command{
		Use:   "rx",
		Short: "Receive frames and save products",
		Long: `Receive VCDU frames from goesrecv, open-satellite-project or UDP
and save the reassembled xRIT files and images. With --file a frame
capture is replayed instead and the command returns at its end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input != "" {
				cfg.Rx.Input = input
			}
			if mode != "" {
				cfg.Rx.Mode = mode
			}
			if keys != "" {
				cfg.Rx.Keys = keys
			}
			if output != "" {
				cfg.Output.Path = output
			}
			if noDashboard {
				cfg.Dashboard.Enabled = false
			}
			cfg.Normalize()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return command.StartReceiver(cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.File, FileOptionName, "", "Replay a capture of raw frames")
	cmd.Flags().StringVar(&opts.Dump, DumpOptionName, "", "Append every received data frame to this file")
	cmd.Flags().StringVar(&input, InputOptionName, "", fmt.Sprintf("Frame source. One of %s, %s, %s",
		config.InputGoesrecv, config.InputOSP, config.InputUDP))
	cmd.Flags().StringVar(&mode, ModeOptionName, "", fmt.Sprintf("Downlink. One of %s, %s", config.DownlinkLRIT, config.DownlinkHRIT))
	cmd.Flags().StringVar(&keys, KeysOptionName, "", "Decryption key file")
	cmd.Flags().StringVar(&output, OutputOptionName, "", "Directory for received products")
	cmd.Flags().BoolVar(&noDashboard, NoDashboardOptionName, false, "Do not serve the dashboard API")
	return cmd
}
