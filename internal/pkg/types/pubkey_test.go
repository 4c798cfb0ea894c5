package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58(t *testing.T) {
	const programID = "FfYvEMJip3kLpSJKfyLRXhp8f8yuSSaLxtjzaFecLT9s"

	p, err := TryPubkeyFromBase58(programID)
	require.NoError(t, err)
	assert.Equal(t, programID, p.String())
	assert.False(t, p.IsZero())
	assert.Equal(t, p, PubkeyFromCommon(p.ToCommon()))

	_, err = TryPubkeyFromBase58("abc")
	assert.Error(t, err, "短地址应解析失败")

	_, err = TryPubkeyFromBase58("0OIl")
	assert.Error(t, err, "非 base58 字符应解析失败")

	assert.True(t, Pubkey{}.IsZero())
	assert.Equal(t, "11111111111111111111111111111111", Pubkey{}.String())
}

func TestHashFromBase58(t *testing.T) {
	var h Hash
	h[0] = 7
	got, err := HashFromBase58(h.String())
	require.NoError(t, err)
	assert.True(t, h.Equals(got))

	_, err = HashFromBase58(Pubkey{}.String()[:10])
	assert.Error(t, err)
}
