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

package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/srv"
)

// StartReceiver runs the receiver until it is interrupted or a replayed capture ends
func StartReceiver(cfg *config.Config, opts srv.RxOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := srv.NewRxServer(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Run(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		log.Info("Receiver interrupted")
	}
	return nil
}
