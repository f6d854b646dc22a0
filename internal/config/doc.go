// Package config provides the scan configuration for vulncrawl.
// It defines crawl limits, etiquette settings, scope rules and the optional
// authentication block, together with validation and YAML file loading.
//
// A ScanConfiguration is validated once, before a crawl starts, and treated
// as immutable afterwards. Validation failures are the only errors that
// abort a crawl.
package config
