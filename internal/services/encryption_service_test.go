package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *EncryptionService {
	t.Helper()
	svc, err := NewEncryptionService(bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	return svc
}

func TestNewEncryptionService_KeyLength(t *testing.T) {
	_, err := NewEncryptionService([]byte("short"), bytes.Repeat([]byte{2}, 32))
	assert.Error(t, err)
	_, err = NewEncryptionService(bytes.Repeat([]byte{1}, 32), nil)
	assert.Error(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	plain := "月光洒在窗台上，我想起了童年的夏天。"

	sealed, err := svc.Seal(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, sealed)

	again, err := svc.Seal(plain)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	opened, err := svc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestSealEmpty(t *testing.T) {
	svc := newTestService(t)
	sealed, err := svc.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)
	opened, err := svc.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestOpenRejectsTampering(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Open("not base64!!")
	assert.Error(t, err)
	_, err = svc.Open("AAAA")
	assert.Error(t, err)

	sealed, err := svc.Seal("hello")
	require.NoError(t, err)
	b := []byte(sealed)
	b[len(b)-3] ^= 0x01
	_, err = svc.Open(string(b))
	assert.Error(t, err)
}

func TestIndexIsDeterministicAndNormalized(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, svc.Index("Writer@Example.com "), svc.Index("writer@example.com"))
	assert.NotEqual(t, svc.Index("a@example.com"), svc.Index("b@example.com"))
	assert.Empty(t, svc.Index("  "))
}

func TestPlaintext(t *testing.T) {
	var s Sealer = Plaintext{}
	v, err := s.Seal("x")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	assert.Equal(t, "a@b.c", s.Index(" A@B.c"))
}
