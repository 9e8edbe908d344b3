package httpsession

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ------------------------------------------------------------------------

// Environment is a flat set of string key/value pairs used to seed a
// SessionConfig without recompiling, e.g. HTTPSESSION_LOCKOUT_TIME_MS=30000.
type Environment interface {
	Values() map[string]string
}

type environment struct {
	prefix string
	values map[string]string
}

// ------------------------------------------------------------------------

// NewEnvFromMap builds an Environment from an existing map, keeping only
// keys that start with prefix and stripping the prefix from the key.
func NewEnvFromMap(prefix string, source map[string]string) Environment {
	env := &environment{prefix: prefix, values: map[string]string{}}

	for k, v := range source {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		env.values[k[len(prefix):]] = v
	}

	return env
}

// NewEnvFromOS builds an Environment from os.Environ(), keeping only
// variables that start with prefix.
func NewEnvFromOS(prefix string) Environment {
	source := map[string]string{}

	for _, kv := range os.Environ() {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			continue
		}
		source[pair[0]] = pair[1]
	}

	return NewEnvFromMap(prefix, source)
}

// NewEnvFromFile builds an Environment from a .env-style file at path,
// parsed with godotenv, keeping only variables that start with prefix.
func NewEnvFromFile(prefix string, path string) (Environment, error) {
	source, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}

	return NewEnvFromMap(prefix, source), nil
}

// ------------------------------------------------------------------------

// Values returns the filtered, prefix-stripped key/value pairs.
func (e *environment) Values() map[string]string {
	return e.values
}
