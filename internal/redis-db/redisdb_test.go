/*
Copyright 2025 Cardpilot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package redis_db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		wantErr  bool
	}{
		{name: "docker style", url: "redis:6379", addr: "redis:6379"},
		{name: "url with password", url: "redis://:password123@localhost:6379", addr: "localhost:6379", password: "password123"},
		{name: "bare host", url: "localhost:6380", addr: "localhost:6380"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedisURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.addr, got.Addr)
			assert.Equal(t, tt.password, got.Password)
		})
	}
}

func TestNewRedisClientEmptyAddresses(t *testing.T) {
	_, err := NewRedisClient([]string{})
	assert.Error(t, err)
}

func TestNewRedisClientRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient([]string{mr.Addr()})
	assert.NoError(t, err)
	assert.NotNil(t, client.Client())

	ctx := context.Background()
	assert.NoError(t, client.Client().Set(ctx, "k", "v", 0).Err())
	got, err := client.Client().Get(ctx, "k").Result()
	assert.NoError(t, err)
	assert.Equal(t, "v", got)
}
