package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/up-only/internal/engine"
)

type cli struct {
	t      *testing.T
	dir    string
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "uponly.yaml")
	body := "wallets: " + filepath.Join(dir, "wallets.csv") + "\n" +
		"storage:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "uponly.db") + "\n" +
		"metrics:\n  listen: \"\"\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0o600))
	return &cli{t: t, dir: dir, config: config}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	err := execute(context.Background(), append([]string{"--config", c.config}, args...), &out, &errOut)
	return out.String(), err
}

func (c *cli) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "uponly %s", strings.Join(args, " "))
	return out
}

func TestCLISaleLifecycle(t *testing.T) {
	c := newCLI(t)

	out := c.must("wallet", "new", "deployer", "faucet", "team", "alice", "bob", "cranker")
	assert.Equal(t, 6, strings.Count(out, "(created)"))

	out = c.must("deploy")
	assert.Contains(t, out, "program_id:")

	c.must("faucet", "deployer", "10")
	c.must("faucet", "alice", "20000")
	c.must("init")

	out = c.must("pass", "buy", "alice")
	assert.Contains(t, out, "buy_pass")

	out = c.must("buy", "alice", "1000")
	assert.Contains(t, out, "minted")

	out = c.must("status", "--yaml", "--wallet", "alice")
	var view statusView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, "UP", view.Symbol)
	// seed 1 + pass net 9400 + buy net 940
	assert.Equal(t, "10341", view.Reserve)
	require.NotNil(t, view.Position)
	assert.True(t, view.Position.HasPass)
	assert.Equal(t, "9000", view.Position.Payment)

	out = c.must("quote", "buy", "100")
	assert.Contains(t, out, "receive")

	out = c.must("journal", "--wallet", "alice")
	assert.Contains(t, out, engine.OpBuyToken)
	assert.Contains(t, out, engine.OpBuyPass)

	out = c.must("journal", "--export", "csv", "--out", filepath.Join(c.dir, "export"))
	_, err := os.Stat(strings.TrimSpace(out))
	assert.NoError(t, err)
}

func TestCLIRejections(t *testing.T) {
	c := newCLI(t)
	c.must("wallet", "new", "deployer", "faucet", "team", "alice", "bob")

	_, err := c.run("status")
	assert.ErrorContains(t, err, "deploy")

	c.must("deploy")
	c.must("faucet", "deployer", "10")
	c.must("init")

	_, err = c.run("init")
	assert.ErrorIs(t, err, engine.ErrAlreadyInitialized)

	_, err = c.run("pass", "give", "alice", "--deployer", "bob")
	assert.ErrorIs(t, err, engine.ErrUnauthorized)

	_, err = c.run("buy", "alice", "10")
	assert.ErrorIs(t, err, engine.ErrNoPass)

	_, err = c.run("buy", "alice", "0.0000001")
	assert.ErrorContains(t, err, "fractional digits")

	_, err = c.run("buy", "carol", "1")
	assert.Error(t, err)
}
