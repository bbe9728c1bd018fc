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
	"log"
	"path/filepath"
	"time"
)

var (
	configPath string
	config     ConduitConfig
)

// Duration is a time.Duration that unmarshals from a JSON string
// such as "30s" or "1m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// TLSConfig holds listener or dialer TLS material. Cert, key and CA
// accept either file paths or inline PEM.
type TLSConfig struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	CACert     string `json:"ca_cert,omitempty"`
	ServerName string `json:"server_name,omitempty"`
	Insecure   bool   `json:"insecure,omitempty"`
}

// ServerConfig configures a listening engine.
type ServerConfig struct {
	Name            string     `json:"name,omitempty"`
	Addr            string     `json:"address,omitempty"`
	ReusePort       bool       `json:"reuse_port,omitempty"`
	ReadTimeout     Duration   `json:"read_timeout,omitempty"`
	WriteTimeout    Duration   `json:"write_timeout,omitempty"`
	GracefulTimeout Duration   `json:"graceful_timeout,omitempty"`
	MaxHeaderBytes  int        `json:"max_header_bytes,omitempty"`
	MaxBodyBytes    int        `json:"max_body_bytes,omitempty"`
	AcceptRate      float64    `json:"accept_rate,omitempty"`
	AcceptBurst     int        `json:"accept_burst,omitempty"`
	LogPath         string     `json:"log_path,omitempty"`
	LogLevel        string     `json:"log_level,omitempty"`
	TLS             *TLSConfig `json:"tls,omitempty"`
}

// ClientConfig configures a client engine and its host pools.
type ClientConfig struct {
	UserAgent       string   `json:"user_agent,omitempty"`
	MaxConnsPerHost int      `json:"max_conns_per_host,omitempty"`
	DialTimeout     Duration `json:"dial_timeout,omitempty"`
	ReadTimeout     Duration `json:"read_timeout,omitempty"`
	IdleTimeout     Duration `json:"idle_timeout,omitempty"`
	MaxRedirects    int      `json:"max_redirects,omitempty"`
	MaxBodyBytes    int      `json:"max_body_bytes,omitempty"`
	ResolveTTL      Duration `json:"resolve_ttl,omitempty"`
}

type ConduitConfig struct {
	Servers []ServerConfig `json:"servers,omitempty"`
	Client  ClientConfig   `json:"client,omitempty"`
}

// DefaultServerConfig returns a server config with conservative limits.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:            "conduit",
		Addr:            "0.0.0.0:8080",
		ReadTimeout:     Duration{30 * time.Second},
		WriteTimeout:    Duration{30 * time.Second},
		GracefulTimeout: Duration{10 * time.Second},
		MaxHeaderBytes:  64 << 10,
		MaxBodyBytes:    4 << 20,
		LogLevel:        "INFO",
	}
}

// DefaultClientConfig returns a client config with conservative limits.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:       "conduit-client",
		MaxConnsPerHost: 16,
		DialTimeout:     Duration{5 * time.Second},
		ReadTimeout:     Duration{30 * time.Second},
		IdleTimeout:     Duration{60 * time.Second},
		MaxRedirects:    5,
		MaxBodyBytes:    8 << 20,
		ResolveTTL:      Duration{30 * time.Second},
	}
}

// Load json file and parse
func LoadJsonFile(path string) *ConduitConfig {
	log.Println("load config from : ", path)
	content, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatalln("load config failed, ", err)
	}
	configPath, _ = filepath.Abs(path)
	err = json.Unmarshal(content, &config)
	if err != nil {
		log.Fatalln("json unmarshal config failed, ", err)
	}
	for i := range config.Servers {
		applyServerDefaults(&config.Servers[i])
	}
	applyClientDefaults(&config.Client)
	return &config
}

func applyServerDefaults(sc *ServerConfig) {
	def := DefaultServerConfig()
	if sc.Name == "" {
		sc.Name = def.Name
	}
	if sc.Addr == "" {
		sc.Addr = def.Addr
	}
	if sc.ReadTimeout.Duration == 0 {
		sc.ReadTimeout = def.ReadTimeout
	}
	if sc.WriteTimeout.Duration == 0 {
		sc.WriteTimeout = def.WriteTimeout
	}
	if sc.GracefulTimeout.Duration == 0 {
		sc.GracefulTimeout = def.GracefulTimeout
	}
	if sc.MaxHeaderBytes == 0 {
		sc.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if sc.MaxBodyBytes == 0 {
		sc.MaxBodyBytes = def.MaxBodyBytes
	}
	if sc.LogLevel == "" {
		sc.LogLevel = def.LogLevel
	}
}

func applyClientDefaults(cc *ClientConfig) {
	def := DefaultClientConfig()
	if cc.UserAgent == "" {
		cc.UserAgent = def.UserAgent
	}
	if cc.MaxConnsPerHost == 0 {
		cc.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cc.DialTimeout.Duration == 0 {
		cc.DialTimeout = def.DialTimeout
	}
	if cc.ReadTimeout.Duration == 0 {
		cc.ReadTimeout = def.ReadTimeout
	}
	if cc.IdleTimeout.Duration == 0 {
		cc.IdleTimeout = def.IdleTimeout
	}
	if cc.MaxRedirects == 0 {
		cc.MaxRedirects = def.MaxRedirects
	}
	if cc.MaxBodyBytes == 0 {
		cc.MaxBodyBytes = def.MaxBodyBytes
	}
	if cc.ResolveTTL.Duration == 0 {
		cc.ResolveTTL = def.ResolveTTL
	}
}
