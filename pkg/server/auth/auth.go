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

// Package auth provides bearer token middleware. Requests without a
// verifiable JWT are answered 401 before the capability runs.
package auth

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"

	"github.com/dgrijalva/jwt-go"

	"conduit/pkg/protocol/http1"
	"conduit/pkg/server"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

var strBearerPrefix = []byte("Bearer ")

type ctxKey int

const ctxKeyClaims ctxKey = iota

// ClaimsFromContext returns the verified token claims of the exchange,
// nil outside an authenticated capability.
func ClaimsFromContext(ctx context.Context) jwt.MapClaims {
	claims, _ := ctx.Value(ctxKeyClaims).(jwt.MapClaims)
	return claims
}

// Config for the bearer middleware. Exactly one of PublicKeyPEM and
// Secret must be set.
type Config struct {
	// PublicKeyPEM verifies RS256 signed tokens.
	PublicKeyPEM string

	// Secret verifies HS256 signed tokens.
	Secret []byte
}

// New builds the middleware. The verify key is parsed once here.
func New(cfg *Config) (server.Middleware, error) {
	var key interface{}
	switch {
	case cfg.PublicKeyPEM != "":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, err
		}
		key = pub
	case len(cfg.Secret) > 0:
		key = cfg.Secret
	default:
		return nil, errors.New("auth: no verify key configured")
	}

	return func(next server.CapabilityFunc) server.CapabilityFunc {
		return func(ctx context.Context, req *http1.Request, w server.ResponseWriter) error {
			claims, err := verify(key, req)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				return w.Send(http1.StatusUnauthorized, nil)
			}
			return next(context.WithValue(ctx, ctxKeyClaims, claims), req, w)
		}
	}, nil
}

func verify(key interface{}, req *http1.Request) (jwt.MapClaims, error) {
	raw := req.Header.Peek("Authorization")
	if !bytes.HasPrefix(raw, strBearerPrefix) {
		return nil, ErrNoToken
	}
	return decode(key, string(raw[len(strBearerPrefix):]))
}

// return token payload
func decode(key interface{}, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		switch key.(type) {
		case *rsa.PublicKey:
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, ErrInvalidToken
			}
		case []byte:
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	payload := token.Claims.(jwt.MapClaims)
	return payload, payload.Valid()
}
