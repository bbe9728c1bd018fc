/*
 * Copyright (c) 2019. The Conduit Authors.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this work except in compliance with the License.
 * You may obtain a copy of the License in the LICENSE file, or at:
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"conduit/pkg/log"
)

var (
	onProcessExit         []func()
	shutdownCallbacksOnce sync.Once
	shutdownCallbacks     []func() error
)

// RegisterShutdownCallback queues f to run during graceful shutdown.
func RegisterShutdownCallback(f func() error) {
	shutdownCallbacks = append(shutdownCallbacks, f)
}

// RegisterOnProcessExit queues f to run right before the process exits.
func RegisterOnProcessExit(f func()) {
	onProcessExit = append(onProcessExit, f)
}

// CatchSignals installs signal handling for srv: SIGTERM and SIGINT
// stop accepting and drain within the graceful timeout, SIGQUIT exits
// immediately after the exit hooks.
func CatchSignals(srv *Server) {
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

		for sig := range sigchan {
			log.DefaultLogger.Infof("signal received: %v", sig)
			switch sig {
			case syscall.SIGQUIT:
				for _, f := range onProcessExit {
					f()
				}
				os.Exit(0)
			case syscall.SIGTERM, syscall.SIGINT:
				exitCode := executeShutdownCallbacks(sig.String())
				for _, f := range onProcessExit {
					f()
				}
				srv.Close()
				grace := srv.config.GracefulTimeout
				if grace == 0 {
					grace = 30 * time.Second
				}
				srv.WaitClosed(grace)
				os.Exit(exitCode)
			}
		}
	}()
}

func executeShutdownCallbacks(signame string) (exitCode int) {
	shutdownCallbacksOnce.Do(func() {
		var errs []error

		for _, cb := range shutdownCallbacks {
			if err := cb(); err != nil {
				errs = append(errs, err)
			}
		}

		if len(errs) > 0 {
			for _, err := range errs {
				log.DefaultLogger.Errorf("server shutdown with err: %s %v", signame, err)
			}
			exitCode = 4
		}
	})

	return
}
