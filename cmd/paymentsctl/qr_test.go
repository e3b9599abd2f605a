package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQRBuildThenDecode(t *testing.T) {
	payload, err := execute(t, "qr", "build",
		"--key", "pagamentos@restaurante.com.br",
		"--name", "Restaurante São João",
		"--city", "São Paulo",
		"--amount", "30.00",
		"--txid", "ORDER123")
	require.NoError(t, err)
	payload = strings.TrimSpace(payload)
	assert.True(t, strings.HasPrefix(payload, "000201"))

	out, err := execute(t, "qr", "decode", payload)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "pagamentos@restaurante.com.br", decoded["key"])
	assert.Equal(t, "RESTAURANTE SAO JOAO", decoded["merchant_name"])
	assert.Equal(t, "30.00", decoded["amount"])
	assert.Equal(t, "ORDER123", decoded["txid"])
}

func TestQRDecode_RejectsTamperedPayload(t *testing.T) {
	payload, err := execute(t, "qr", "build", "--key", "chave", "--name", "Loja", "--city", "Recife", "--amount", "10.00")
	require.NoError(t, err)
	payload = strings.TrimSpace(payload)
	tampered := strings.Replace(payload, "10.00", "99.00", 1)

	_, err = execute(t, "qr", "decode", tampered)
	assert.Error(t, err)
}

func TestQRBuild_RequiresKey(t *testing.T) {
	_, err := execute(t, "qr", "build", "--name", "Loja")
	assert.Error(t, err)
}

func TestQRBuild_InvalidAmount(t *testing.T) {
	_, err := execute(t, "qr", "build", "--key", "chave", "--amount", "dez")
	assert.Error(t, err)
}
