// Package config loads process configuration and the application
// settings that the license gate reads.
//
// # Sources
//
// Process configuration is layered, later sources winning:
//
//  1. Default()
//  2. a YAML file (VIDGRAB_CONFIG_FILE, or config.yaml / configs/config.yaml)
//  3. environment variables prefixed VIDGRAB_
//
// For example:
//
//	VIDGRAB_SERVER_PORT=8080
//	VIDGRAB_STORE_DSN=sqlite://data/vidgrab.db
//	VIDGRAB_LICENSE_EXPIRY_POLICY=reject
//	VIDGRAB_DOWNLOAD_OUTPUT_DIR=downloads
//
// The result is checked with go-playground/validator struct tags.
//
// # Application settings
//
// AppConfig ({maxDownloads, authExpiryDays, name, version}) comes from a
// static JSON resource: the embedded config.json unless a path is given.
// When the resource cannot be read or is invalid, DefaultAppConfig is used
// and the load error is returned alongside it for logging.
package config
