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

package config

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"conduit/pkg/log"
)

var (
	once    sync.Once
	lock    sync.Mutex
	dumping int32
)

func DumpLock() {
	lock.Lock()
}

func DumpUnlock() {
	lock.Unlock()
}

// SetDirty marks the in-memory config as changed so the next dump
// cycle persists it.
func SetDirty() {
	atomic.CompareAndSwapInt32(&dumping, 0, 1)
}

func getDump() bool {
	return atomic.CompareAndSwapInt32(&dumping, 1, 0)
}

// DumpConfig persists the effective config back to its source file
// when it has been marked dirty.
func DumpConfig() {
	if !getDump() {
		return
	}
	if configPath == "" {
		return
	}
	content, err := json.MarshalIndent(&config, "", "  ")
	if err == nil {
		err = WriteFileSafety(configPath, content, 0644)
	}
	if err != nil {
		log.DefaultLogger.Errorf("dump config failed, caused by: %v", err)
	}
}

// DumpConfigHandler loops forever persisting dirty config. Run it in
// its own goroutine.
func DumpConfigHandler() {
	once.Do(func() {
		for {
			time.Sleep(3 * time.Second)

			DumpLock()
			DumpConfig()
			DumpUnlock()
		}
	})
}

// WriteFileSafety trys to over write a file safety.
func WriteFileSafety(filename string, data []byte, perm os.FileMode) (err error) {
	tempFile := filename + ".tmp"
Try:
	for i := 0; i < 5; i++ {
		err = ioutil.WriteFile(tempFile, data, perm)
		if err == nil {
			break Try
		}
	}
	if err != nil {
		return err
	}
	err = os.Rename(tempFile, filename)
	return
}
