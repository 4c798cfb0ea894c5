package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://api.devnet.solana.com", normalizeURL("devnet"))
	assert.Equal(t, "http://localhost:8899", normalizeURL("l"))
	assert.Equal(t, "https://api.mainnet-beta.solana.com", normalizeURL("Mainnet-Beta"))
	assert.Equal(t, "http://10.0.0.1:8899", normalizeURL("http://10.0.0.1:8899"))
}

func TestRootCmdWiring(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"config", "url", "owner", "program-id", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "C", cmd.PersistentFlags().Lookup("config").Shorthand)
	assert.Equal(t, "u", cmd.PersistentFlags().Lookup("url").Shorthand)

	initCmd, _, err := cmd.Find([]string{"init"})
	require.NoError(t, err)
	assert.NotNil(t, initCmd.Flags().Lookup("keypair"))

	infoCmd, _, err := cmd.Find([]string{"info"})
	require.NoError(t, err)
	assert.Error(t, infoCmd.Args(infoCmd, nil))
	assert.NoError(t, infoCmd.Args(infoCmd, []string{"FfYvEMJip3kLpSJKfyLRXhp8f8yuSSaLxtjzaFecLT9s"}))
}

func TestInfoRejectsBadAddress(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"info", "not-a-pubkey"})
	assert.Error(t, cmd.Execute())
}
