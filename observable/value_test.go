package observable

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stixgraph/stixgraph/store"
)

func entityOf(entityType string, attrs map[string]any) *store.Entity {
	return &store.Entity{ID: "id-1", EntityType: entityType, Attributes: attrs}
}

func TestResolveValue(t *testing.T) {
	tests := []struct {
		name   string
		entity *store.Entity
		want   string
		ok     bool
	}{
		{
			name:   "mutex name",
			entity: entityOf(TypeMutex, map[string]any{"name": "Global\\lock"}),
			want:   "Global\\lock",
			ok:     true,
		},
		{
			name:   "autonomous system number",
			entity: entityOf(TypeAutonomousSystem, map[string]any{"number": 64512}),
			want:   "64512",
			ok:     true,
		},
		{
			name:   "ipv4 generic value",
			entity: entityOf(TypeIPv4Addr, map[string]any{"value": "10.0.0.1"}),
			want:   "10.0.0.1",
			ok:     true,
		},
		{
			name: "file prefers sha256 over everything",
			entity: entityOf(TypeStixFile, map[string]any{
				"md5":    "a1",
				"sha1":   "b2",
				"sha256": "c3",
				"name":   "dropper.exe",
			}),
			want: "c3",
			ok:   true,
		},
		{
			name: "file falls back to sha1 when sha256 absent",
			entity: entityOf(TypeStixFile, map[string]any{
				"md5":  "a1",
				"sha1": "b2",
			}),
			want: "b2",
			ok:   true,
		},
		{
			name:   "file falls back to md5 alone",
			entity: entityOf(TypeStixFile, map[string]any{"md5": "a1"}),
			want:   "a1",
			ok:     true,
		},
		{
			name:   "file name as last resort",
			entity: entityOf(TypeStixFile, map[string]any{"name": "dropper.exe"}),
			want:   "dropper.exe",
			ok:     true,
		},
		{
			name:   "artifact payload fallback",
			entity: entityOf(TypeArtifact, map[string]any{"payload_bin": "AAAA"}),
			want:   "AAAA",
			ok:     true,
		},
		{
			name:   "certificate subject fallback",
			entity: entityOf(TypeX509Certificate, map[string]any{"subject": "CN=test"}),
			want:   "CN=test",
			ok:     true,
		},
		{
			name: "certificate hash beats subject",
			entity: entityOf(TypeX509Certificate, map[string]any{
				"sha256":  "c3",
				"subject": "CN=test",
				"issuer":  "CN=issuer",
			}),
			want: "c3",
			ok:   true,
		},
		{
			name:   "certificate issuer as last resort",
			entity: entityOf(TypeX509Certificate, map[string]any{"issuer": "CN=issuer"}),
			want:   "CN=issuer",
			ok:     true,
		},
		{
			name:   "network traffic port as string",
			entity: entityOf(TypeNetworkTraffic, map[string]any{"dst_port": float64(443)}),
			want:   "443",
			ok:     true,
		},
		{
			name:   "no attributes",
			entity: entityOf(TypeMutex, nil),
			ok:     false,
		},
		{
			name:   "empty string does not resolve",
			entity: entityOf(TypeURL, map[string]any{"value": ""}),
			ok:     false,
		},
		{
			name: "nil entity",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveValue(tt.entity)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashAttr(t *testing.T) {
	t.Run("prefers sha256", func(t *testing.T) {
		key, value, ok := HashAttr(entityOf(TypeStixFile, map[string]any{
			"md5": "a1", "sha1": "b2", "sha256": "c3",
		}))
		assert.True(t, ok)
		assert.Equal(t, "sha256", key)
		assert.Equal(t, "c3", value)
	})

	t.Run("sha1 before md5", func(t *testing.T) {
		key, _, ok := HashAttr(entityOf(TypeStixFile, map[string]any{
			"md5": "a1", "sha1": "b2",
		}))
		assert.True(t, ok)
		assert.Equal(t, "sha1", key)
	})

	t.Run("md5 alone", func(t *testing.T) {
		key, _, ok := HashAttr(entityOf(TypeStixFile, map[string]any{"md5": "a1"}))
		assert.True(t, ok)
		assert.Equal(t, "md5", key)
	})

	t.Run("no hash", func(t *testing.T) {
		_, _, ok := HashAttr(entityOf(TypeStixFile, map[string]any{"name": "x"}))
		assert.False(t, ok)
	})
}
