package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// Configuration file location and environment.
const (
	// ConfigDirName is the directory under $HOME holding the CLI config.
	ConfigDirName = ".strapi"

	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"

	// ConfigFileType is the config file format.
	ConfigFileType = "yml"

	// EnvPrefix prefixes environment overrides, e.g. STRAPI_URL.
	EnvPrefix = "STRAPI"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout bounds each CLI request when the config sets none.
	DefaultHTTPTimeout = 30 * time.Second
)

// Retry limits. Retries are off unless RetryMax is set.
const (
	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Token handling.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second
)

// Pagination limits of the content API.
const (
	// DefaultPageSize is the page size the API applies when none is given.
	DefaultPageSize = 25

	// MaxPageSize is the largest page size the API accepts by default.
	MaxPageSize = 100
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// StringTruncationLength is the default length for truncating table cells.
	StringTruncationLength = 60

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)

// Format constants.
const (
	// FormatTable for table output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)

