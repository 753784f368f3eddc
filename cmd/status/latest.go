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

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-xrit/pkg/command"
	"jinr.ru/greenlab/go-xrit/pkg/config"
)

func NewLatestCommand(cfg *config.Config) *cobra.Command {
	var xrit bool
	cmd := &cobra.Command{
		Use:   "latest [TYPE]",
		Short: "Show the latest image, optionally of one product type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			out := cmd.OutOrStdout()
			if xrit {
				f, err := apiClient.LatestFile()
				if err != nil {
					return err
				}
				if f == nil {
					fmt.Fprintln(out, "No file received yet")
					return nil
				}
				fmt.Fprintf(out, "%s %s %s %d bytes %s\n", f.Time.Format("2006-01-02 15:04:05"), f.Category, f.Path, f.Size, f.Hash)
				return nil
			}
			category := ""
			if len(args) > 0 {
				category = args[0]
			}
			img, err := apiClient.Latest(category)
			if err != nil {
				return err
			}
			if img == nil {
				fmt.Fprintln(out, "No image received yet")
				return nil
			}
			fmt.Fprintf(out, "%s %s %s %s\n", img.Time.Format("2006-01-02 15:04:05"), img.Category, img.ImagePath, img.Hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&xrit, "xrit", false, "Show the latest xRIT file instead")
	return cmd
}
