package main

import (
	"fmt"

	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/protect"
	"github.com/goliatone/go-settings/pkg/storage"
)

// SecretEnv names the environment variable holding the key material.
const SecretEnv = "SETTINGS_SECRET_KEY"

type rootOptions struct {
	dir    string
	app    string
	secret string
	getenv func(string) string
}

func (o *rootOptions) storage() *storage.Directory {
	if o.dir != "" {
		return storage.NewDirectory(o.dir)
	}
	return storage.NewRoaming(o.app)
}

func (o *rootOptions) keyMaterial() string {
	if o.secret != "" {
		return o.secret
	}
	if o.getenv != nil {
		if secret := o.getenv(SecretEnv); secret != "" {
			return secret
		}
	}
	return settings.DefaultKeyMaterial
}

func (o *rootOptions) protector() *protect.AESGCM {
	return protect.NewAESGCM()
}

func blobName(repository string) string {
	return repository + settings.FileExtension
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &rootOptions{getenv: getenv}

	root := &cobra.Command{
		Use:   "settingsctl",
		Short: "Inspect and edit persisted settings",
		Long: fmt.Sprintf(`settingsctl reads and writes the JSON blobs stored by go-settings.

Repositories are addressed by key, e.g. "Preferences" or "Preferences.default".
Protected values use the key material from --secret or $%s.`, SecretEnv),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "settings folder (default: roaming config folder for --app)")
	root.PersistentFlags().StringVar(&opts.app, "app", settings.DefaultAppFolder, "application folder name inside the roaming config home")
	root.PersistentFlags().StringVar(&opts.secret, "secret", "", "key material for protected values (default: $"+SecretEnv+")")

	root.AddCommand(showCmd(opts))
	root.AddCommand(getCmd(opts))
	root.AddCommand(setCmd(opts))
	root.AddCommand(protectCmd(opts))
	root.AddCommand(unprotectCmd(opts))
	root.AddCommand(watchCmd(opts))
	return root
}
