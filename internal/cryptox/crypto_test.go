package cryptox

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/aliceout/nodea/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(fill byte) RawKey {
	return RawKey(bytes.Repeat([]byte{fill}, KeySize))
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey(7)
	plaintexts := [][]byte{
		{},
		[]byte("x"),
		[]byte(`{"date":"2024-05-01","mood":3}`),
		bytes.Repeat([]byte("journal "), 4096),
	}

	for _, p := range plaintexts {
		sealed, err := Seal(p, key)
		require.NoError(t, err)
		assert.Len(t, sealed.IV, NonceSize)

		got, err := Open(*sealed, key)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(p, got))
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key := testKey(1)
	a, err := Seal([]byte("same"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same"), key)
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestOpen_FailsOnTampering(t *testing.T) {
	key := testKey(2)
	sealed, err := Seal([]byte("secret note"), key)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := Open(*sealed, testKey(3))
		assert.ErrorIs(t, err, common.ErrorDecryption)
	})

	t.Run("altered ciphertext", func(t *testing.T) {
		ct := append([]byte(nil), sealed.Ciphertext...)
		ct[0] ^= 0xff
		_, err := Open(Sealed{IV: sealed.IV, Ciphertext: ct}, key)
		assert.ErrorIs(t, err, common.ErrorDecryption)
	})

	t.Run("altered nonce", func(t *testing.T) {
		iv := append([]byte(nil), sealed.IV...)
		iv[len(iv)-1] ^= 0x01
		_, err := Open(Sealed{IV: iv, Ciphertext: sealed.Ciphertext}, key)
		assert.ErrorIs(t, err, common.ErrorDecryption)
	})

	t.Run("short nonce", func(t *testing.T) {
		_, err := Open(Sealed{IV: sealed.IV[:4], Ciphertext: sealed.Ciphertext}, key)
		assert.ErrorIs(t, err, common.ErrorDecryption)
	})
}

func TestSealOpen_RejectInvalidKey(t *testing.T) {
	for _, key := range []RawKey{nil, RawKey("short"), RawKey(bytes.Repeat([]byte{1}, 16))} {
		_, err := Seal([]byte("p"), key)
		assert.ErrorIs(t, err, common.ErrorKeyMissing)

		_, err = Open(Sealed{IV: make([]byte, NonceSize)}, key)
		assert.ErrorIs(t, err, common.ErrorKeyMissing)
	}
}

func TestOpenWithRetry_EscalatesToKeyMissing(t *testing.T) {
	sealed, err := Seal([]byte("p"), testKey(4))
	require.NoError(t, err)

	_, err = OpenWithRetry(*sealed, testKey(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrorKeyMissing))

	got, err := OpenWithRetry(*sealed, testKey(4))
	require.NoError(t, err)
	assert.Equal(t, []byte("p"), got)
}

func TestSealJSON_OpenJSON(t *testing.T) {
	type entry struct {
		Date string `json:"date"`
		Mood int    `json:"mood"`
	}
	key := testKey(9)

	sealed, err := SealJSON(entry{Date: "2024-01-02", Mood: 2}, key)
	require.NoError(t, err)

	var got entry
	require.NoError(t, OpenJSON(*sealed, key, &got))
	assert.Equal(t, entry{Date: "2024-01-02", Mood: 2}, got)
}

func TestRawKey_Wipe(t *testing.T) {
	key := testKey(0xaa)
	key.Wipe()
	assert.Equal(t, make([]byte, KeySize), []byte(key))
}

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveMasterKey(password, salt)
	key2 := DeriveMasterKey(password, salt)
	assert.Equal(t, key1, key2)
	assert.NoError(t, key1.Validate())

	expectedHex := "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39"
	assert.Equal(t, expectedHex, hex.EncodeToString(key1))
}

func TestDeriveMasterKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")
	assert.NotEqual(t, DeriveMasterKey(password, []byte("salt-1")), DeriveMasterKey(password, []byte("salt-2")))
}

func TestMakeVerifier_HidesKey(t *testing.T) {
	key := testKey(3)
	v := MakeVerifier(key)
	assert.Len(t, v, 32)
	assert.NotEqual(t, []byte(key), v)
	assert.Equal(t, v, MakeVerifier(key))
}
