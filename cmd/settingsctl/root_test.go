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

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/protect"
	"github.com/goliatone/go-settings/pkg/storage"
)

type Preferences struct {
	Theme string `default:"light"`
	Size  int    `default:"12"`
	Token string `settings:"token,protected"`
}

func run(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(key string) string { return env[key] })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestShowPrintsBlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Preferences.settings"), []byte(`{"Theme":"dark"}`), 0o600))

	out, err := run(t, nil, "--dir", dir, "show", "Preferences")
	require.NoError(t, err)
	assert.Equal(t, `{"Theme":"dark"}`, out)

	_, err = run(t, nil, "--dir", dir, "show", "Missing")
	assert.ErrorContains(t, err, "no persisted settings")
}

func TestShowRejectsMalformedBlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.settings"), []byte(`{oops`), 0o600))

	_, err := run(t, nil, "--dir", dir, "show", "Broken")
	require.Error(t, err)
}

func TestSetThenGet(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, nil, "--dir", dir, "set", "Preferences", "Theme", `"dark"`)
	require.NoError(t, err)
	_, err = run(t, nil, "--dir", dir, "set", "Preferences", "Size", `14`)
	require.NoError(t, err)

	out, err := run(t, nil, "--dir", dir, "get", "Preferences", "Theme")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, out)

	_, err = run(t, nil, "--dir", dir, "get", "Preferences", "Missing")
	assert.ErrorContains(t, err, "is not set")

	_, err = run(t, nil, "--dir", dir, "set", "Preferences", "Size", `nope`)
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestSetIsReadByProvider(t *testing.T) {
	dir := t.TempDir()
	env := map[string]string{SecretEnv: "cli-secret"}

	_, err := run(t, env, "--dir", dir, "set", "Preferences", "Size", `20`)
	require.NoError(t, err)
	_, err = run(t, env, "--dir", dir, "set", "--protected", "Preferences", "token", `"abc123"`)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "Preferences.settings"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "abc123")

	provider := settings.NewProvider(storage.NewDirectory(dir), settings.WithSecretKey("cli-secret"))
	prefs, err := settings.Get[Preferences](context.Background(), provider, false)
	require.NoError(t, err)
	assert.Equal(t, "light", prefs.Theme)
	assert.Equal(t, 20, prefs.Size)
	assert.Equal(t, "abc123", prefs.Token)
}

func TestGetProtectedDecryptsProviderValue(t *testing.T) {
	dir := t.TempDir()
	provider := settings.NewProvider(storage.NewDirectory(dir), settings.WithSecretKey("flag-secret"))
	require.NoError(t, settings.Save(context.Background(), provider, &Preferences{Theme: "dark", Token: "s3cret"}))

	out, err := run(t, nil, "--dir", dir, "--secret", "flag-secret", "get", "--protected", "Preferences", "token")
	require.NoError(t, err)
	assert.Equal(t, `"s3cret"`, out)

	_, err = run(t, nil, "--dir", dir, "--secret", "wrong", "get", "--protected", "Preferences", "token")
	require.Error(t, err)

	_, err = run(t, nil, "--dir", dir, "--secret", "flag-secret", "get", "--protected", "Preferences", "Size")
	assert.ErrorIs(t, err, errNotString)
}

func TestProtectUnprotectRoundTrip(t *testing.T) {
	out, err := run(t, nil, "protect", "hello")
	require.NoError(t, err)
	assert.True(t, protect.IsProtected(out))

	plain, err := run(t, nil, "unprotect", out)
	require.NoError(t, err)
	assert.Equal(t, "hello", plain)

	_, err = run(t, map[string]string{SecretEnv: "other"}, "unprotect", out)
	require.Error(t, err)
}

func TestKeyMaterialPrecedence(t *testing.T) {
	opts := &rootOptions{getenv: func(string) string { return "" }}
	assert.Equal(t, settings.DefaultKeyMaterial, opts.keyMaterial())

	opts.getenv = func(string) string { return "env" }
	assert.Equal(t, "env", opts.keyMaterial())

	opts.secret = "flag"
	assert.Equal(t, "flag", opts.keyMaterial())
}

func TestStorageDefaultsToRoamingFolder(t *testing.T) {
	opts := &rootOptions{app: "my-app"}
	assert.Equal(t, "my-app", filepath.Base(opts.storage().Root()))

	opts.dir = "/tmp/explicit"
	assert.Equal(t, "/tmp/explicit", opts.storage().Root())
}
