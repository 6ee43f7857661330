package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/goliatone/go-settings/internal/codec"
)

func showCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <repository>",
		Short: "Print the blob persisted for a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, ok, err := opts.storage().Read(cmd.Context(), blobName(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("repository %q has no persisted settings", args[0])
			}
			if !gjson.Valid(content) {
				return fmt.Errorf("repository %q: %w", args[0], codec.ErrMalformed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}
}

func getCmd(opts *rootOptions) *cobra.Command {
	var protected bool
	cmd := &cobra.Command{
		Use:   "get <repository> <key>",
		Short: "Print one persisted value as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, ok, err := opts.storage().Read(cmd.Context(), blobName(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("repository %q has no persisted settings", args[0])
			}
			raw, found := codec.Lookup(content, args[1])
			if !found {
				return fmt.Errorf("key %q is not set in %q", args[1], args[0])
			}
			if protected {
				if raw, err = opts.unprotectRaw(raw); err != nil {
					return fmt.Errorf("key %q: %w", args[1], err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
	cmd.Flags().BoolVar(&protected, "protected", false, "decrypt a protected value")
	return cmd
}

func setCmd(opts *rootOptions) *cobra.Command {
	var protected bool
	cmd := &cobra.Command{
		Use:   "set <repository> <key> <json>",
		Short: "Write one value, keeping the rest of the blob",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := opts.storage()
			name := blobName(args[0])
			raw := json.RawMessage(args[2])
			if !gjson.Valid(args[2]) {
				return fmt.Errorf("value %q is not valid JSON", args[2])
			}
			if protected {
				var err error
				if raw, err = opts.protectRaw(raw); err != nil {
					return fmt.Errorf("key %q: %w", args[1], err)
				}
			}

			content, _, err := store.Read(cmd.Context(), name)
			if err != nil {
				return err
			}
			updated, err := codec.Set(content, args[1], raw)
			if err != nil {
				return fmt.Errorf("repository %q: %w", args[0], err)
			}
			return store.Write(cmd.Context(), name, updated)
		},
	}
	cmd.Flags().BoolVar(&protected, "protected", false, "encrypt the value before writing")
	return cmd
}

func protectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "protect <text>",
		Short: "Encrypt text with the configured key material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.protector().Protect(args[0], opts.keyMaterial())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func unprotectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unprotect <text>",
		Short: "Decrypt text produced by protect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.protector().Unprotect(args[0], opts.keyMaterial())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func watchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print blob names as they change on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := opts.storage()
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", store.Root())
			err := store.Watch(cmd.Context(), func(name string) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			})
			if errors.Is(err, cmd.Context().Err()) {
				return nil
			}
			return err
		},
	}
}

var errNotString = errors.New("protected values must be JSON strings")

func (o *rootOptions) protectRaw(raw json.RawMessage) (json.RawMessage, error) {
	var plaintext string
	if err := json.Unmarshal(raw, &plaintext); err != nil {
		return nil, errNotString
	}
	ciphertext, err := o.protector().Protect(plaintext, o.keyMaterial())
	if err != nil {
		return nil, err
	}
	return json.Marshal(ciphertext)
}

func (o *rootOptions) unprotectRaw(raw json.RawMessage) (json.RawMessage, error) {
	var ciphertext string
	if err := json.Unmarshal(raw, &ciphertext); err != nil {
		return nil, errNotString
	}
	plaintext, err := o.protector().Unprotect(ciphertext, o.keyMaterial())
	if err != nil {
		return nil, err
	}
	return json.Marshal(plaintext)
}
