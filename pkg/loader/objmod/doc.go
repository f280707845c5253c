// Package objmod links mods shipped as compiled Go object files.
//
// A mod object exports factory functions of type func() any; each returns
// the entrypoint value registered under the key named in mod.toml. Linking
// needs github.com/pkujhd/goloader and is compiled in only with the
// goloader build tag. Without it Link reports the mod as unsupported.
package objmod
