package ts3

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdentityGeneratesAndPersistsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.txt")

	id, err := ResolveIdentity("", path)
	require.NoError(t, err)
	assert.NotEmpty(t, id.PrivateKeyD)
	assert.NotEmpty(t, id.PublicKeyX)
	assert.FileExists(t, path)

	again, err := ResolveIdentity("", path)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestResolveIdentityPrefersExplicitOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.txt")
	explicit := `{"private_key_d":"aa","public_key_x":"bb","public_key_y":"cc","key_offset":7}`

	id, err := ResolveIdentity(explicit, path)
	require.NoError(t, err)
	assert.Equal(t, "aa", id.PrivateKeyD)
	assert.Equal(t, uint64(7), id.KeyOffset)
	assert.NoFileExists(t, path)
}

func TestUniqueIDIsStableAndDeterministic(t *testing.T) {
	id := Identity{PublicKeyX: "1", PublicKeyY: "2"}
	a := id.UniqueID()
	b := id.UniqueID()
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)

	other := Identity{PublicKeyX: "3", PublicKeyY: "4"}
	assert.NotEqual(t, a, other.UniqueID())
}
