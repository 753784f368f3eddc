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

package keys

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/crypt"
)

func NewKeysCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys [FILE]",
		Short: "List the key indexes of a decryption key file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.Rx.Keys
			if len(args) > 0 {
				path = args[0]
			}
			keys, err := crypt.LoadKeys(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d keys\n", path, len(keys))
			for _, index := range keys.Indexes() {
				fmt.Fprintf(out, "0x%04x\n", index)
			}
			return nil
		},
	}
	return cmd
}
