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
	stdlog "log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"conduit/pkg/log"
)

// LoadEnv loads .env files into the process environment. Missing files
// are not an error, variables already set in the environment win.
func LoadEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			stdlog.Println("load env file failed: ", f, err)
		}
	}
}

// ApplyEnv overrides fields of sc from CONDUIT_* environment variables.
func ApplyEnv(sc *ServerConfig) {
	sc.Addr = envString("CONDUIT_ADDR", sc.Addr)
	sc.Name = envString("CONDUIT_NAME", sc.Name)
	sc.LogLevel = envString("CONDUIT_LOG_LEVEL", sc.LogLevel)
	sc.LogPath = envString("CONDUIT_LOG_PATH", sc.LogPath)
	sc.ReusePort = envBool("CONDUIT_REUSE_PORT", sc.ReusePort)
	sc.ReadTimeout = envDuration("CONDUIT_READ_TIMEOUT", sc.ReadTimeout)
	sc.WriteTimeout = envDuration("CONDUIT_WRITE_TIMEOUT", sc.WriteTimeout)
	sc.GracefulTimeout = envDuration("CONDUIT_GRACEFUL_TIMEOUT", sc.GracefulTimeout)
	sc.MaxHeaderBytes = envInt("CONDUIT_MAX_HEADER_BYTES", sc.MaxHeaderBytes)
	sc.MaxBodyBytes = envInt("CONDUIT_MAX_BODY_BYTES", sc.MaxBodyBytes)
}

// ParseLogLevel maps a config level name to a log.Level, INFO on unknown.
func ParseLogLevel(level string) log.Level {
	if logLevel, ok := logLevelMap[level]; ok {
		return logLevel
	}
	return log.INFO
}

var logLevelMap = map[string]log.Level{
	"TRACE": log.TRACE,
	"DEBUG": log.DEBUG,
	"FATAL": log.FATAL,
	"ERROR": log.ERROR,
	"WARN":  log.WARN,
	"INFO":  log.INFO,
}

// ResolveAddr validates the configured listen address.
func ResolveAddr(sc *ServerConfig) *net.TCPAddr {
	if sc.Addr == "" {
		stdlog.Fatalln("[address] is required in server config")
	}
	addr, err := net.ResolveTCPAddr("tcp", sc.Addr)
	if err != nil {
		stdlog.Fatalln("[address] not valid:", sc.Addr)
	}
	return addr
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		stdlog.Println("invalid integer for", key, ":", v)
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		stdlog.Println("invalid boolean for", key, ":", v)
	}
	return def
}

func envDuration(key string, def Duration) Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return Duration{d}
		}
		stdlog.Println("invalid duration for", key, ":", v)
	}
	return def
}
