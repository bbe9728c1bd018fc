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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit/pkg/log"
)

func TestDurationJSONRoundTrip(t *testing.T) {
	d := Duration{90 * time.Second}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	var got Duration
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, d.Duration, got.Duration)
}

func TestDurationUnmarshalRejectsNumbers(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`30`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"banana"`), &d))
}

func TestLoadJsonFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conduit.json")
	raw := `{
  "servers": [
    {"name": "edge", "address": "127.0.0.1:9090", "read_timeout": "5s"}
  ],
  "client": {"max_conns_per_host": 4}
}`
	require.NoError(t, ioutil.WriteFile(path, []byte(raw), 0644))

	cfg := LoadJsonFile(path)
	require.Len(t, cfg.Servers, 1)

	sc := cfg.Servers[0]
	assert.Equal(t, "edge", sc.Name)
	assert.Equal(t, "127.0.0.1:9090", sc.Addr)
	assert.Equal(t, 5*time.Second, sc.ReadTimeout.Duration)
	// defaulted fields
	assert.Equal(t, 30*time.Second, sc.WriteTimeout.Duration)
	assert.Equal(t, 64<<10, sc.MaxHeaderBytes)
	assert.Equal(t, "INFO", sc.LogLevel)

	assert.Equal(t, 4, cfg.Client.MaxConnsPerHost)
	assert.Equal(t, "conduit-client", cfg.Client.UserAgent)
	assert.Equal(t, 5, cfg.Client.MaxRedirects)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CONDUIT_ADDR", "127.0.0.1:7070")
	t.Setenv("CONDUIT_LOG_LEVEL", "DEBUG")
	t.Setenv("CONDUIT_READ_TIMEOUT", "7s")
	t.Setenv("CONDUIT_MAX_BODY_BYTES", "1024")

	sc := DefaultServerConfig()
	ApplyEnv(&sc)

	assert.Equal(t, "127.0.0.1:7070", sc.Addr)
	assert.Equal(t, "DEBUG", sc.LogLevel)
	assert.Equal(t, 7*time.Second, sc.ReadTimeout.Duration)
	assert.Equal(t, 1024, sc.MaxBodyBytes)
	// untouched fields keep their values
	assert.Equal(t, "conduit", sc.Name)
}

func TestApplyEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("CONDUIT_READ_TIMEOUT", "not-a-duration")
	t.Setenv("CONDUIT_MAX_BODY_BYTES", "not-a-number")

	sc := DefaultServerConfig()
	ApplyEnv(&sc)

	assert.Equal(t, 30*time.Second, sc.ReadTimeout.Duration)
	assert.Equal(t, 4<<20, sc.MaxBodyBytes)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, log.DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, log.TRACE, ParseLogLevel("TRACE"))
	assert.Equal(t, log.INFO, ParseLogLevel("bogus"))
}

func TestWriteFileSafety(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFileSafety(path, []byte("one"), 0644))
	require.NoError(t, WriteFileSafety(path, []byte("two"), 0644))

	got, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestResolveAddr(t *testing.T) {
	sc := DefaultServerConfig()
	sc.Addr = "127.0.0.1:8081"
	addr := ResolveAddr(&sc)
	require.NotNil(t, addr)
	assert.Equal(t, 8081, addr.Port)
}
