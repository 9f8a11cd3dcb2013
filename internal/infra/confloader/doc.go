// Package confloader loads layered configuration with koanf.
//
// Sources, from highest to lowest priority:
//
//  1. Command-line flags (LoadMap / WithOverrides)
//  2. Environment variables (WALLETAUTH_ prefix)
//  3. The YAML configuration file
//  4. Defaults already present in the target struct
//
// Environment variables use a double underscore between nesting levels
// so that keys may contain single underscores:
//
//	WALLETAUTH_BACKEND__BASE_URL=https://api.example.com  -> backend.base_url
//	WALLETAUTH_SERVER__HTTP__ADDR=127.0.0.1:7580          -> server.http.addr
//
// Watcher reports changes to the configuration file so that selected
// settings (the log level) can be reloaded without a restart.
package confloader
