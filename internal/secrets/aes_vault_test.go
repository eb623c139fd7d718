package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcore/pkg/schema"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func testVault(t *testing.T) (*AESVault, *MemoryStore) {
	t.Helper()
	s := NewMemoryStore()
	v, err := NewAESVault(s, VaultConfig{MasterKey: testKey()})
	require.NoError(t, err)
	return v, s
}

func TestAESVault_StoreAndResolve(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "api_key", []byte("sk-secret-123")))

	val, err := v.Resolve(ctx, "api_key")
	require.NoError(t, err)
	assert.Equal(t, []byte("sk-secret-123"), val)
}

func TestAESVault_EncryptedAtRest(t *testing.T) {
	v, s := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "token", []byte("plaintext-value")))

	raw, err := s.GetSecret(ctx, "token")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("plaintext-value")))
	assert.Greater(t, len(raw), len("plaintext-value"))
}

func TestAESVault_CiphertextBoundToName(t *testing.T) {
	v, s := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "prod", []byte("hidden")))
	raw, err := s.GetSecret(ctx, "prod")
	require.NoError(t, err)
	require.NoError(t, s.StoreSecret(ctx, "copy", raw))

	_, err = v.Resolve(ctx, "copy")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeVault, schema.CodeOf(err))
}

func TestAESVault_PassphraseDerivation(t *testing.T) {
	v, err := NewAESVault(NewMemoryStore(), VaultConfig{
		Passphrase: "my-secure-passphrase",
		Salt:       []byte("test-salt-16byte"),
		Iterations: 1000,
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "k", []byte("value")))
	val, err := v.Resolve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
}

func TestAESVault_WrongKeyCannotDecrypt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	key2 := make([]byte, 32)
	key2[0] = 0xFF

	v1, err := NewAESVault(s, VaultConfig{MasterKey: make([]byte, 32)})
	require.NoError(t, err)
	require.NoError(t, v1.Store(ctx, "secret", []byte("hidden")))

	v2, err := NewAESVault(s, VaultConfig{MasterKey: key2})
	require.NoError(t, err)
	_, err = v2.Resolve(ctx, "secret")
	require.Error(t, err)
}

func TestAESVault_Delete(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "key", []byte("val")))
	require.NoError(t, v.Delete(ctx, "key"))

	_, err := v.Resolve(ctx, "key")
	require.Error(t, err)
	var fe *schema.FlowError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}

func TestAESVault_ListSorted(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	for _, k := range []string{"c_key", "a_key", "b_key"} {
		require.NoError(t, v.Store(ctx, k, []byte(k)))
	}

	keys, err := v.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_key", "b_key", "c_key"}, keys)
}

func TestAESVault_Overwrite(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "key", []byte("v1")))
	require.NoError(t, v.Store(ctx, "key", []byte("v2")))

	val, err := v.Resolve(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), val)
}

func TestAESVault_EmptyName(t *testing.T) {
	v, _ := testVault(t)
	err := v.Store(context.Background(), "", []byte("x"))
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestAESVault_UniqueNonces(t *testing.T) {
	v, s := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "k", []byte("same-value")))
	ct1, _ := s.GetSecret(ctx, "k")
	require.NoError(t, v.Store(ctx, "k", []byte("same-value")))
	ct2, _ := s.GetSecret(ctx, "k")

	assert.False(t, bytes.Equal(ct1, ct2))
}

func TestAESVault_ConfigErrors(t *testing.T) {
	cases := map[string]VaultConfig{
		"short key":          {MasterKey: []byte("too-short")},
		"nothing":            {},
		"passphrase no salt": {Passphrase: "pass"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewAESVault(NewMemoryStore(), cfg)
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeVault, schema.CodeOf(err))
		})
	}
}

func TestParseMasterKey(t *testing.T) {
	key := testKey()

	got, err := ParseMasterKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = ParseMasterKey(" " + base64.StdEncoding.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = ParseMasterKey("abcd")
	assert.Error(t, err)
}

func TestMemoryStore_Isolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	in := []byte("abc")
	require.NoError(t, s.StoreSecret(ctx, "k", in))
	in[0] = 'z'

	out, err := s.GetSecret(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(s.DeleteSecret(ctx, "missing")))
}
