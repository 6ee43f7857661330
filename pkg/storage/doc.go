// Package storage provides blob backends for settings repositories.
//
// Every backend reads and writes one text blob per name. The settings core
// derives names as `<repository key>.settings`, for example
// `Preferences.settings` for the override repository and
// `Preferences.default.settings` for the default repository. Backends never
// interpret blob contents.
//
// Backends:
//   - Memory keeps blobs in a map and counts physical writes; intended for
//     tests and examples.
//   - File stores every blob in one fixed file, ignoring the name.
//   - Directory stores one file per name under a root folder. NewPortable
//     roots it next to the executable, NewRoaming under the XDG config home.
//   - Keyring stores blobs in the operating system credential store.
//
// A missing blob is reported as ok=false, never as an error.
package storage
