// Package config loads the runtime configuration from a TOML file.
//
// Load reads the file, expands ${VAR} references strictly (a missing
// variable is an error), fills defaults for anything left empty and
// validates the result. A missing file is not an error: the defaults are
// returned as-is.
//
//	[api]
//	base_url = "${THESYNC_API_URL}"
//	headers = { Authorization = "Bearer ${THESYNC_TOKEN}" }
//
//	[cache]
//	ttl = "5m"
//	max_size = 100
//	persist = true
//	path = "~/.local/share/thesync/cache.db"
//
//	[toggle]
//	debounce = "300ms"
//	settle = "300ms"
package config
