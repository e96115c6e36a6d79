package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsegate/pkg/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestInspect_XHR(t *testing.T) {
	t.Chdir(t.TempDir())
	body := `[{"pairAddress":"a","devWalletFunding":{"fundingWalletAddress":"` + config.KucoinAddress + `"}},{"pairAddress":"b"}]`

	out, err := run(t, "inspect", "--xhr", writeFile(t, "pulse.json", body))
	require.NoError(t, err)

	assert.Contains(t, out, "action: replace")
	assert.Contains(t, out, `"pairAddress":"a"`)
	assert.NotContains(t, out, `"pairAddress":"b"`)
	assert.Contains(t, out, "XHR Responses: 1/2 items kept")
}

func TestInspect_RoomDrop(t *testing.T) {
	t.Chdir(t.TempDir())
	payload := `{"room":"update_pulse_v2","content":[["pair",null,"dev"]]}`

	out, err := run(t, "inspect", "--room", writeFile(t, "frame.json", payload))
	require.NoError(t, err)

	assert.Contains(t, out, "action: drop")
	assert.Contains(t, out, "Update Pulse: 0/1 items kept")
}

func TestInspect_Flags(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "inspect")
	assert.Error(t, err)

	_, err = run(t, "inspect", "--room", "a", "--xhr", "b")
	assert.Error(t, err)

	_, err = run(t, "inspect", "--room", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestAddresses_RoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	mr := miniredis.RunT(t)
	t.Setenv("PULSEGATE_REDIS_ADDRESS", mr.Addr())

	_, err := run(t, "addresses", "add", "funder", config.BinanceAddress)
	require.NoError(t, err)
	_, err = run(t, "addresses", "add", "funder", config.BybitAddress)
	require.NoError(t, err)
	_, err = run(t, "addresses", "remove", "funder", config.BybitAddress)
	require.NoError(t, err)

	out, err := run(t, "addresses", "list", "funder")
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{config.BinanceAddress, config.KucoinAddress, config.MexcAddress},
		strings.Fields(out), "the first edit seeds the configured funders")

	for _, addr := range []string{config.BinanceAddress, config.KucoinAddress, config.MexcAddress} {
		_, err = run(t, "addresses", "remove", "funder", addr)
		require.NoError(t, err)
	}
	out, err = run(t, "addresses", "list", "funder")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out), "an emptied set is not reseeded")

	_, err = run(t, "addresses", "add", "wallet", config.BinanceAddress)
	assert.Error(t, err)
}
