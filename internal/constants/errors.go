package constants

import "errors"

// Configuration errors.
var (
	ErrNoBaseURL        = errors.New("no API URL configured, use 'strapi config set url <url>' or STRAPI_URL")
	ErrUnknownConfigKey = errors.New("unknown configuration key")
	ErrInvalidConfig    = errors.New("invalid configuration value")
)

// Flag parsing errors.
var (
	ErrInvalidFilterFlag   = errors.New("invalid --filter value, expected field:operator:value")
	ErrInvalidDeepFlag     = errors.New("invalid --deep value, expected path:operator:value")
	ErrInvalidPopulateFlag = errors.New("invalid --populate-with value, expected relation[:field,...][:deep]")
	ErrConflictingFlags    = errors.New("conflicting flags")
	ErrUnsupportedFormat   = errors.New("unsupported output format")
)

// Request errors.
var (
	ErrRequestFailed = errors.New("request failed")
)
