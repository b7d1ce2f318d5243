package observable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stixgraph/stixgraph/pattern"
	"github.com/stixgraph/stixgraph/store"
)

type fakeIndicatorCreator struct {
	input      map[string]any
	autoEnrich bool
	err        error
	calls      int
}

func (f *fakeIndicatorCreator) AddIndicator(ctx context.Context, actor string, input map[string]any, autoEnrich bool) (*store.Entity, error) {
	f.calls++
	f.input = input
	f.autoEnrich = autoEnrich
	if f.err != nil {
		return nil, f.err
	}
	return &store.Entity{ID: "indicator-1", EntityType: "Indicator", Attributes: input}, nil
}

type failingBridge struct{ err error }

func (b *failingBridge) CreatePattern(ctx context.Context, key, value string) (string, error) {
	return "", b.err
}

func TestIndicatorKey(t *testing.T) {
	tests := []struct {
		name   string
		entity *store.Entity
		want   string
	}{
		{
			name:   "plain type",
			entity: entityOf(TypeMutex, map[string]any{"name": "m"}),
			want:   "Mutex",
		},
		{
			name:   "file aliased with preferred hash",
			entity: entityOf(TypeStixFile, map[string]any{"md5": "a", "sha256": "c"}),
			want:   "File_sha256",
		},
		{
			name:   "file sha1 when no sha256",
			entity: entityOf(TypeStixFile, map[string]any{"md5": "a", "sha1": "b"}),
			want:   "File_sha1",
		},
		{
			name:   "file md5 last",
			entity: entityOf(TypeStixFile, map[string]any{"md5": "a"}),
			want:   "File_md5",
		},
		{
			name:   "hashed type without hash falls back to type key",
			entity: entityOf(TypeStixFile, map[string]any{"name": "f"}),
			want:   "File",
		},
		{
			name:   "artifact keeps its own name",
			entity: entityOf(TypeArtifact, map[string]any{"sha1": "b"}),
			want:   "Artifact_sha1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, indicatorKey(tt.entity))
		})
	}
}

func TestLinkCreatesIndicator(t *testing.T) {
	creator := &fakeIndicatorCreator{}
	linker := NewIndicatorLinker(pattern.NewLocalBridge(), creator)

	created := entityOf(TypeIPv4Addr, map[string]any{"value": "10.0.0.1"})
	typed := map[string]any{
		"value":            "10.0.0.1",
		"internal_id":      "should-not-carry",
		"stix_id":          "should-not-carry",
		"observable_value": "should-not-carry",
		"objectMarking":    []string{"marking-1"},
	}

	res := linker.Link(context.Background(), "tester", created, typed)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Indicator)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, 1, creator.calls)
	assert.False(t, creator.autoEnrich)

	input := creator.input
	assert.Equal(t, "10.0.0.1", input["name"])
	assert.Equal(t, "Simple indicator of observable {10.0.0.1}", input["description"])
	assert.Equal(t, "stix", input["pattern_type"])
	assert.Equal(t, "[ipv4-addr:value = '10.0.0.1']", input["pattern"])
	assert.Equal(t, TypeIPv4Addr, input["x_opencti_main_observable_type"])
	assert.Equal(t, []string{created.ID}, input["basedOn"])
	assert.Equal(t, []string{"marking-1"}, input["objectMarking"])
	assert.NotContains(t, input, "internal_id")
	assert.NotContains(t, input, "stix_id")
	assert.NotContains(t, input, "observable_value")
}

func TestLinkSkipsWhenNoPattern(t *testing.T) {
	creator := &fakeIndicatorCreator{}
	linker := NewIndicatorLinker(pattern.NewLocalBridge(), creator)

	// A type the bridge has no mapping for yields an empty pattern.
	created := entityOf(TypeText, map[string]any{"value": "free text"})
	res := linker.Link(context.Background(), "tester", created, map[string]any{"value": "free text"})

	require.NoError(t, res.Err)
	assert.Nil(t, res.Indicator)
	assert.NotEmpty(t, res.Skipped)
	assert.Zero(t, creator.calls)
}

func TestLinkSkipsWhenNoValue(t *testing.T) {
	creator := &fakeIndicatorCreator{}
	linker := NewIndicatorLinker(pattern.NewLocalBridge(), creator)

	created := entityOf(TypeMutex, map[string]any{})
	res := linker.Link(context.Background(), "tester", created, map[string]any{})

	require.NoError(t, res.Err)
	assert.Nil(t, res.Indicator)
	assert.NotEmpty(t, res.Skipped)
	assert.Zero(t, creator.calls)
}

func TestLinkReportsBridgeFailure(t *testing.T) {
	creator := &fakeIndicatorCreator{}
	linker := NewIndicatorLinker(&failingBridge{err: errors.New("bridge down")}, creator)

	created := entityOf(TypeMutex, map[string]any{"name": "m"})
	res := linker.Link(context.Background(), "tester", created, map[string]any{"name": "m"})

	require.Error(t, res.Err)
	assert.Nil(t, res.Indicator)
	assert.Zero(t, creator.calls)
}

func TestLinkReportsCreationFailure(t *testing.T) {
	creator := &fakeIndicatorCreator{err: errors.New("store unavailable")}
	linker := NewIndicatorLinker(pattern.NewLocalBridge(), creator)

	created := entityOf(TypeMutex, map[string]any{"name": "m"})
	res := linker.Link(context.Background(), "tester", created, map[string]any{"name": "m"})

	require.Error(t, res.Err)
	assert.Nil(t, res.Indicator)
	assert.Equal(t, 1, creator.calls)
}
