// Package fileconf is a hierarchical configuration persistence engine. It
// binds a tree-shaped document (YAML by default) to the exported fields of a
// Go object, reconciles missing keys against a bundled defaults document,
// coerces stored values into declared target types, and keeps multiple
// logical configuration objects pointing at the same file consistent by
// routing them through one shared in-memory tree.
//
// The engine is organized in layers:
//
//   - section: an ordered tree keyed by dot-delimited paths, mirroring a
//     parsed document. Key order is preserved so files round-trip without
//     their keys being shuffled.
//   - Codec and Converter: the document codec parses and serializes the
//     tree; the value converter coerces raw stored values to declared
//     types, including domain types that implement Serializable and
//     Deserializable.
//   - Handle: one logical configuration object. Typed accessors (GetString,
//     GetList, GetMap, ...) resolve paths against an optional prefix, copy
//     missing keys from the bundled defaults, and apply a small set of
//     documented convenience coercions. The field binder loads and saves
//     the exported fields of the bound target automatically, driven by
//     `conf` struct tags.
//   - Registry: a process-wide mapping from absolute file identity to the
//     single shared tree backing every handle opened against that file.
//     One mutex serializes all loads and saves; re-entrant calls from
//     lifecycle hooks are deferred or dropped through a small state
//     machine rather than a second lock layer.
//   - Provider[T]: a typed façade that constructs a *T from a default
//     factory, loads it through a Handle, applies environment overrides
//     via `env` struct tags, and optionally integrates with
//     github.com/ygrebnov/model for struct defaults and validation.
//
// Typical usage:
//
//	type Settings struct {
//	    ServerName string        `conf:"server_name"`
//	    Timeout    time.Duration
//	    Aliases    []string
//	}
//
//	p := fileconf.NewProvider[Settings]("conf/settings.yml",
//	    fileconf.WithBundledDefaults[Settings](embedded, "defaults/settings.yml"),
//	    fileconf.WithEnvPrefix[Settings]("MYAPP"),
//	)
//	cfg, created, err := p.Get()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = cfg; _ = created
package fileconf
