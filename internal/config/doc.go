/*
Package config loads and validates syncd's declarative configuration.

Layered precedence, following the teacher's koanf pattern:

 1. Defaults: built-in sensible defaults (defaultConfig)
 2. Config File: YAML file found via DefaultConfigPaths or CONFIG_PATH
 3. Environment Variables: SYNCD_-prefixed, double-underscore nested

The resulting Config is validated once at startup (Validate) and is
immutable afterward — peers, once loaded, are never mutated in place.
*/
package config
