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

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-xrit/cmd/completion"
	"jinr.ru/greenlab/go-xrit/cmd/config"
	"jinr.ru/greenlab/go-xrit/cmd/keys"
	"jinr.ru/greenlab/go-xrit/cmd/rx"
	"jinr.ru/greenlab/go-xrit/cmd/status"
	pkgconfig "jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
	ConfigOptionName   = "config"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel, configPath string
	var logFile *os.File
	cfg := pkgconfig.NewDefaultConfig()
	cmd := &cobra.Command{
		Use:          "go-xrit",
		Short:        "Receive and decode LRIT/HRIT satellite downlinks",
		Version:      pkgconfig.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg.SetPath(configPath)
			}
			if err := cfg.Load(); err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			cfg.Normalize()
			if !log.ValidLevel(cfg.Logging.Level) {
				return fmt.Errorf("Wrong log level %q. %s", cfg.Logging.Level, log.HelpLevels)
			}
			logOut := cmd.ErrOrStderr()
			if cfg.Logging.File != "" {
				f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
				if err != nil {
					return err
				}
				logFile = f
				logOut = io.MultiWriter(logOut, f)
			}
			log.Init(logOut, cfg.Logging.Level)
			return cfg.Validate()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFile != nil {
				logFile.Close()
			}
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(rx.NewRxCommand(cfg))
	cmd.AddCommand(status.NewStatusCommand(cfg))
	cmd.AddCommand(status.NewLatestCommand(cfg))
	cmd.AddCommand(status.NewProductsCommand(cfg))
	cmd.AddCommand(keys.NewKeysCommand(cfg))
	cmd.AddCommand(config.NewCommand(cfg))
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	cmd.PersistentFlags().StringVar(&configPath, ConfigOptionName, "", fmt.Sprintf("Config file. Default %s", pkgconfig.DefaultConfigPath()))
	return cmd
}
