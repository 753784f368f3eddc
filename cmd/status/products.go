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
	"jinr.ru/greenlab/go-xrit/pkg/srv"
)

func NewProductsCommand(cfg *config.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "products TYPE",
		Short: "List recorded products of a type, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			records, err := apiClient.Products(args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range records {
				flag := ""
				if r.Encrypted {
					flag = " (encrypted)"
				}
				fmt.Fprintf(out, "%s %s %s%s\n", r.Time.Format("2006-01-02 15:04:05"), r.Name, r.Path, flag)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", srv.DefaultProductsLimit, "Maximum number of products")
	return cmd
}
