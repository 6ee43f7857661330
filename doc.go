// Package settings persists typed settings structs as JSON blobs.
//
// A settings type is a named struct. Field defaults come from struct tags:
//
//	type Preferences struct {
//		Theme   string        `default:"light" desc:"Colour scheme"`
//		Retries int           `settings:"retry_count" default:"3"`
//		Timeout time.Duration `default:"30s"`
//		Region  string        `defaultExpr:"args.region"`
//		Token   string        `settings:"token,protected"`
//	}
//
// Persisted blobs are overlaid onto those defaults, so a blob only needs the
// keys that differ. defaultExpr tags are evaluated with expr-lang/expr unless
// WithEvaluator selects CEL or JavaScript; expressions see now, args,
// typeName, field and key. Protected string fields are encrypted at rest with
// pkg/protect and decrypted on load.
//
// A Provider reads and writes one repository per type and keeps one cached
// instance per type:
//
//	provider := settings.NewProvider(storage.NewRoaming("my-app"))
//	prefs, err := settings.Get[Preferences](ctx, provider, false)
//	prefs.Theme = "dark"
//	err = settings.Save(ctx, provider, prefs)
//
// A LayeredProvider adds a default repository, stored under the key
// "<Type>.default", that holds the full set of effective defaults. Overrides
// are saved sparsely against it, so editing the default repository changes
// every value that has not been overridden.
package settings
