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

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-xrit/pkg/command"
	"jinr.ru/greenlab/go-xrit/pkg/config"
)

func NewStatusCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			info, err := apiClient.Info()
			if err != nil {
				return err
			}
			stats, err := apiClient.Stats()
			if err != nil {
				return err
			}
			progress, err := apiClient.Progress()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s from %s, version %s\n", info.Spacecraft, info.Downlink, info.Input, info.Version)
			fmt.Fprintf(out, "Up %s\n", (time.Duration(stats.Uptime) * time.Second).String())
			fmt.Fprintf(out, "Frames: %d (fill %d, ignored %d, invalid %d), gaps %d\n",
				stats.Frames, stats.FillFrames, stats.IgnoredFrames, stats.InvalidFrames, stats.Gaps)
			fmt.Fprintf(out, "Packets: %d, CRC errors %d\n", stats.Packets, stats.CRCErrors)
			fmt.Fprintf(out, "Products: %d completed, %d abandoned, %d undecrypted, %d images\n",
				stats.Completed, stats.Abandoned, stats.Undecrypted, stats.Images)
			for _, p := range progress {
				fmt.Fprintf(out, "VCID %2d: %s %.1f%%\n", p.VCID, p.Name, p.Percent)
			}
			return nil
		},
	}
	return cmd
}
