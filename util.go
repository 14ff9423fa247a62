package fileconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInaccessiblePath        = errors.New("inaccessible path")
	ErrCannotCreateDirectories = errors.New("cannot create directories")
)

// EnsurePath ensures the directories for a file path exist and the path
// does not already exist as a directory.
func EnsurePath(p string) error {
	info, err := os.Stat(p)
	switch {
	case err == nil:
		if info.IsDir() {
			return ErrInaccessiblePath
		}
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return ErrInaccessiblePath
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ErrCannotCreateDirectories
	}
	return nil
}

// writeFileAtomic writes data through a temp file in the target directory
// and renames it into place, so a crash mid-write never leaves a truncated
// configuration file behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "temp-config-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w %s: %w", ErrWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

// ------------------------------------------------------------------------
// Identifier casing
// ------------------------------------------------------------------------

// NamingConvention selects how field identifiers are converted into
// document keys.
type NamingConvention int

const (
	// SnakeCase converts ApiKey to api_key. The default.
	SnakeCase NamingConvention = iota
	// ScreamingSnakeCase converts ApiKey to API_KEY.
	ScreamingSnakeCase
	// KebabCase converts ApiKey to api-key.
	KebabCase
)

// convertCase derives a document key from a Go identifier. An identifier
// that is entirely upper-case is lower-cased first, so constant-style names
// like TIMEOUT become "timeout" rather than colliding oddly with the word
// boundary rules.
func convertCase(name string, c NamingConvention) string {
	if isAllUpper(name) {
		name = strings.ToLower(name)
	}
	sep := byte('_')
	upper := false
	switch c {
	case ScreamingSnakeCase:
		upper = true
	case KebabCase:
		sep = '-'
	}

	var b strings.Builder
	for i, r := range name {
		if i > 0 && isWordBoundary(rune(name[i-1]), r) {
			b.WriteByte(sep)
		}
		if upper {
			b.WriteRune(toUpper(r))
		} else {
			b.WriteRune(toLower(r))
		}
	}
	return b.String()
}

func isWordBoundary(prev, curr rune) bool {
	// Split words only on lower→upper transitions (ApiKey → api_key). Do
	// not split between letters and digits, so ApiKey2FA stays api_key2fa.
	return (prev >= 'a' && prev <= 'z') && (curr >= 'A' && curr <= 'Z')
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	return r
}

// ------------------------------------------------------------------------
// Environment overrides (used by Provider)
// ------------------------------------------------------------------------

const envVarTagName = "env"

// applyEnv walks the struct's exported fields and overrides them from
// environment variables named after the `env` tag, or the field name in
// SCREAMING_SNAKE_CASE, joined to the prefix and enclosing segments with
// underscores. Nested structs recurse with their segment appended; a nil
// pointer to a struct is allocated only when at least one matching variable
// is actually set.
func applyEnv(v reflect.Value, prefix string, segments []string) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		tag := sf.Tag.Get(envVarTagName)
		if tag == "-" {
			continue
		}
		seg := tag
		if seg == "" {
			seg = convertCase(sf.Name, ScreamingSnakeCase)
		}
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		name := buildEnvName(prefix, append(segments, seg))

		switch field.Kind() {
		case reflect.Struct:
			applyEnv(field, prefix, append(segments, seg))
		case reflect.Pointer:
			elem := field.Type().Elem()
			if elem.Kind() == reflect.Struct {
				if hasAnyEnvWithPrefix(name + "_") {
					if field.IsNil() {
						field.Set(reflect.New(elem))
					}
					applyEnv(field, prefix, append(segments, seg))
				}
				continue
			}
			// Pointer scalars are allocated only when the variable is set
			// and parses, so an absent or malformed override leaves nil.
			parsed := reflect.New(elem).Elem()
			if setFromEnv(parsed, name) {
				if field.IsNil() {
					field.Set(reflect.New(elem))
				}
				field.Elem().Set(parsed)
			}
		default:
			setFromEnv(field, name)
		}
	}
}

// setFromEnv assigns the named variable to the field, reporting whether the
// field was actually set. Absent or malformed values leave it untouched.
func setFromEnv(field reflect.Value, name string) bool {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	raw = strings.TrimSpace(raw)

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
		return true
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
			return true
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(raw); err == nil {
				field.SetInt(int64(d))
				return true
			}
			return false
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && !field.OverflowInt(n) {
			field.SetInt(n)
			return true
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil && !field.OverflowUint(n) {
			field.SetUint(n)
			return true
		}
	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			field.SetFloat(f)
			return true
		}
	}
	return false
}

func buildEnvName(prefix string, segments []string) string {
	switch {
	case prefix == "" && len(segments) == 0:
		return ""
	case prefix == "":
		return strings.Join(segments, "_")
	case len(segments) == 0:
		return prefix
	default:
		return prefix + "_" + strings.Join(segments, "_")
	}
}

func hasAnyEnvWithPrefix(prefix string) bool {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}
