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

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/pkg/protocol/http1"
	"conduit/pkg/server"
)

type stubWriter struct {
	header http1.ResponseHeader
	status int
}

func (w *stubWriter) Header() *http1.ResponseHeader { return &w.header }

func (w *stubWriter) Send(status int, body []byte) error {
	w.status = status
	return nil
}

func (w *stubWriter) SendStream(status int) (io.WriteCloser, error) {
	w.status = status
	return nil, nil
}

func okCapability(ran *bool) server.CapabilityFunc {
	return func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
		*ran = true
		return w.Send(http1.StatusOK, nil)
	}
}

func hmacToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestBearerHMACAccepted(t *testing.T) {
	secret := []byte("s3cret")
	mw, err := New(&Config{Secret: secret})
	require.NoError(t, err)

	var ran bool
	var gotSub string
	cap := mw(func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
		ran = true
		gotSub, _ = ClaimsFromContext(ctx)["sub"].(string)
		return w.Send(http1.StatusOK, nil)
	})

	req := http1.AcquireRequest()
	defer http1.ReleaseRequest(req)
	token := hmacToken(t, secret, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req.Header.Set("Authorization", "Bearer "+token)

	w := &stubWriter{}
	require.NoError(t, cap(context.Background(), req, w))
	assert.True(t, ran)
	assert.Equal(t, "u1", gotSub)
	assert.Equal(t, http1.StatusOK, w.status)
}

func TestBearerMissingTokenRejected(t *testing.T) {
	mw, err := New(&Config{Secret: []byte("s3cret")})
	require.NoError(t, err)

	var ran bool
	cap := mw(okCapability(&ran))

	req := http1.AcquireRequest()
	defer http1.ReleaseRequest(req)

	w := &stubWriter{}
	require.NoError(t, cap(context.Background(), req, w))
	assert.False(t, ran)
	assert.Equal(t, http1.StatusUnauthorized, w.status)
	assert.Equal(t, "Bearer", string(w.header.Peek("WWW-Authenticate")))
}

func TestBearerBadSignatureRejected(t *testing.T) {
	mw, err := New(&Config{Secret: []byte("s3cret")})
	require.NoError(t, err)

	var ran bool
	cap := mw(okCapability(&ran))

	req := http1.AcquireRequest()
	defer http1.ReleaseRequest(req)
	token := hmacToken(t, []byte("wrong"), jwt.MapClaims{"sub": "u1"})
	req.Header.Set("Authorization", "Bearer "+token)

	w := &stubWriter{}
	require.NoError(t, cap(context.Background(), req, w))
	assert.False(t, ran)
	assert.Equal(t, http1.StatusUnauthorized, w.status)
}

func TestBearerExpiredTokenRejected(t *testing.T) {
	secret := []byte("s3cret")
	mw, err := New(&Config{Secret: secret})
	require.NoError(t, err)

	var ran bool
	cap := mw(okCapability(&ran))

	req := http1.AcquireRequest()
	defer http1.ReleaseRequest(req)
	token := hmacToken(t, secret, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	req.Header.Set("Authorization", "Bearer "+token)

	w := &stubWriter{}
	require.NoError(t, cap(context.Background(), req, w))
	assert.False(t, ran)
	assert.Equal(t, http1.StatusUnauthorized, w.status)
}

func TestBearerRSAAccepted(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	mw, err := New(&Config{PublicKeyPEM: string(pubPEM)})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "u2",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(priv)
	require.NoError(t, err)

	var ran bool
	cap := mw(okCapability(&ran))

	req := http1.AcquireRequest()
	defer http1.ReleaseRequest(req)
	req.Header.Set("Authorization", "Bearer "+token)

	w := &stubWriter{}
	require.NoError(t, cap(context.Background(), req, w))
	assert.True(t, ran)
	assert.Equal(t, http1.StatusOK, w.status)
}

func TestNewWithoutKeyFails(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}
