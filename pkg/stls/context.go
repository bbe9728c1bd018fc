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

package stls

import (
	"crypto/tls"

	"conduit/pkg/config"
)

// NewServerTLSConfig builds a listener side tls.Config from cfg using
// the default config hooks.
func NewServerTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	hooks := DefaultConfigHooks()
	cert, err := hooks.GetCertificate(cfg.Cert, cfg.Key)
	if err != nil {
		return nil, err
	}
	pool, err := hooks.GetX509Pool(cfg.CACert)
	if err != nil {
		return nil, err
	}
	tc := &tls.Config{
		Certificates:          []tls.Certificate{cert},
		VerifyPeerCertificate: hooks.VerifyPeerCertificate(),
	}
	if pool != nil {
		tc.ClientCAs = pool
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tc, nil
}

// NewClientTLSConfig builds a dialer side tls.Config from cfg using
// the default config hooks. Client certificates are optional.
func NewClientTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	hooks := DefaultConfigHooks()
	tc := &tls.Config{
		ServerName:            cfg.ServerName,
		InsecureSkipVerify:    cfg.Insecure,
		VerifyPeerCertificate: hooks.VerifyPeerCertificate(),
	}
	cert, err := hooks.GetCertificate(cfg.Cert, cfg.Key)
	if err == nil {
		tc.Certificates = []tls.Certificate{cert}
	} else if err != ErrorNoCertConfigure {
		return nil, err
	}
	pool, err := hooks.GetX509Pool(cfg.CACert)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		tc.RootCAs = pool
	}
	return tc, nil
}
