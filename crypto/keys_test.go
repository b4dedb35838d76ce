package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(PayPrefix, raw)

	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, string(PayPrefix)+"1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, PayPrefix, decoded.Prefix())
	require.Equal(t, raw, decoded.Bytes())
	require.Equal(t, addr.Array(), decoded.Array())
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	_, err := DecodeAddress("not-bech32")
	require.Error(t, err)

	_, err = DecodeAddress("")
	require.Error(t, err)
}

func TestGeneratedKeyDerivesAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	require.Len(t, addr.Bytes(), 20)
	require.Equal(t, PayPrefix, addr.Prefix())

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, addr.String(), restored.PubKey().Address().String())
}
