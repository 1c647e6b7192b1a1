package core

import (
	"fmt"
	"strings"
)

type Platform string

const (
	PlatformZoho Platform = "ZOHO"
	PlatformXero Platform = "XERO"
)

func Platforms() []Platform {
	return []Platform{PlatformZoho, PlatformXero}
}

// ParsePlatform matches the platform name case-insensitively.
func ParsePlatform(value string) (Platform, error) {
	switch Platform(strings.ToUpper(strings.TrimSpace(value))) {
	case PlatformZoho:
		return PlatformZoho, nil
	case PlatformXero:
		return PlatformXero, nil
	}
	return "", validationError("platform", fmt.Sprintf("unsupported platform %q (expected ZOHO or XERO)", value))
}

func (p Platform) Valid() bool {
	return p == PlatformZoho || p == PlatformXero
}

func (p Platform) String() string {
	return string(p)
}

// DisplayName is the human label used in pages and messages.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformZoho:
		return "Zoho"
	case PlatformXero:
		return "Xero"
	}
	return string(p)
}

const TokenKeyPrefix = "tokens"

// TokenKey returns the store key for one (user, platform) record:
// tokens:<userId>:<PLATFORM>.
func TokenKey(userID string, platform Platform) string {
	return TokenKeyPrefix + ":" + strings.TrimSpace(userID) + ":" + string(platform)
}
