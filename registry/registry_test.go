package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/authcode-server/internal/testutil"
)

func TestLoad(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", "port: 8080\n"+testutil.RegistryYAML)

	r, err := Load(path, nil)
	require.NoError(t, err)

	assert.True(t, r.IsKnownClient(testutil.ClientID))
	assert.True(t, r.IsKnownClient(testutil.OtherClientID))
	assert.False(t, r.IsKnownClient("unknown"))

	assert.Equal(t, testutil.ClientName, r.ClientName(testutil.ClientID))
	assert.Equal(t, "", r.ClientName("unknown"))

	assert.Equal(t, testutil.ScopeReadDesc, r.ScopeDescription(testutil.ScopeRead))
	assert.Equal(t, testutil.ScopeWriteDesc, r.ScopeDescription(testutil.ScopeWrite))
	assert.Equal(t, []string{testutil.ClientID, testutil.OtherClientID}, r.Snapshot().ClientIDs())
}

func TestLoad_JSON(t *testing.T) {
	path := testutil.WriteFile(t, "default.json", `{
  "clients": {"acme": {"name": "Acme Corp"}},
  "scopes": {"read": {"description": "Read your data"}}
}`)

	r, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", r.ClientName("acme"))
	assert.Equal(t, "Read your data", r.ScopeDescription("read"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("/does/not/exist.yaml", nil)
	assert.Error(t, err)

	path := testutil.WriteFile(t, "bad.yaml", "clients: [not, a, map")
	_, err = Load(path, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(Document{
		Clients: map[string]ClientConfig{"nameless": {}},
		Scopes:  map[string]ScopeConfig{"bare": {}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "nameless", r.ClientName("nameless"), "client name falls back to id")
	assert.Equal(t, "bare", r.ScopeDescription("bare"), "scope description falls back to id")
	assert.Equal(t, "unregistered", r.ScopeDescription("unregistered"))
}

func TestNew_EmptyID(t *testing.T) {
	_, err := New(Document{Clients: map[string]ClientConfig{"": {Name: "x"}}}, nil)
	assert.Error(t, err)

	_, err = New(Document{Scopes: map[string]ScopeConfig{"": {}}}, nil)
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", testutil.RegistryYAML)
	r, err := Load(path, nil)
	require.NoError(t, err)

	before := r.Snapshot()

	require.NoError(t, os.WriteFile(path, []byte("clients:\n  newcomer:\n    name: New\n"), 0o600))
	require.NoError(t, r.Reload())

	assert.True(t, r.IsKnownClient("newcomer"))
	assert.False(t, r.IsKnownClient(testutil.ClientID))

	// Old snapshots are unaffected
	_, ok := before.Client(testutil.ClientID)
	assert.True(t, ok)
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", testutil.RegistryYAML)
	r, err := Load(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("clients: [broken"), 0o600))
	assert.Error(t, r.Reload())
	assert.True(t, r.IsKnownClient(testutil.ClientID))
}

func TestReload_NotFromFile(t *testing.T) {
	r, err := New(Document{}, nil)
	require.NoError(t, err)

	assert.Error(t, r.Reload())
	assert.Error(t, r.Watch(context.Background()))
}

func TestWatch(t *testing.T) {
	path := testutil.WriteFile(t, "config.yaml", testutil.RegistryYAML)
	r, err := Load(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(testutil.RegistryYAML+"  admin:\n    description: Administer\n"), 0o600))

	assert.Eventually(t, func() bool {
		return r.ScopeDescription("admin") == "Administer"
	}, 5*time.Second, 50*time.Millisecond)
}
