package amazonpay

import (
	"fmt"
	"strings"
)

var regionHosts = map[string]string{
	"na": "pay-api.amazon.com",
	"us": "pay-api.amazon.com",
	"eu": "pay-api.amazon.eu",
	"uk": "pay-api.amazon.eu",
	"de": "pay-api.amazon.eu",
	"jp": "pay-api.amazon.jp",
}

// regionCode normalizes a configured region into the value sent in the
// x-amz-pay-region header.
func regionCode(region string) (string, error) {
	switch strings.ToLower(region) {
	case "na", "us":
		return "na", nil
	case "eu", "uk", "de":
		return "eu", nil
	case "jp":
		return "jp", nil
	}
	return "", fmt.Errorf("amazonpay: unknown region %q", region)
}

// endpointHost returns the API host for region.
func endpointHost(region string) (string, error) {
	host, ok := regionHosts[strings.ToLower(region)]
	if !ok {
		return "", fmt.Errorf("amazonpay: unknown region %q", region)
	}
	return host, nil
}

// pathPrefix returns the version path for the key's environment. Keys issued
// with an environment prefix (LIVE-..., SANDBOX-...) already select it.
func pathPrefix(publicKeyID string, sandbox bool) string {
	upper := strings.ToUpper(publicKeyID)
	if strings.HasPrefix(upper, "LIVE-") || strings.HasPrefix(upper, "SANDBOX-") {
		return "/v2"
	}
	if sandbox {
		return "/sandbox/v2"
	}
	return "/live/v2"
}
