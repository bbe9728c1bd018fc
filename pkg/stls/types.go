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
	"crypto/x509"
	"errors"
)

// ErrorNoCertConfigure means a TLS context was requested without
// certificate material.
var ErrorNoCertConfigure = errors.New("no certificate configured")

// ConfigHooks loads certificate material from config indexes. An index
// is either a file path or inline PEM.
type ConfigHooks interface {
	GetCertificate(certIndex, keyIndex string) (tls.Certificate, error)

	GetX509Pool(caIndex string) (*x509.CertPool, error)

	VerifyPeerCertificate() func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}
