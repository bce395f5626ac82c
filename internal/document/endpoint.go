package document

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultRegion is used when an http(s) endpoint does not name a region.
const DefaultRegion = "us-east-1"

// Endpoint is a parsed document store endpoint.
//
// Accepted forms:
//
//	dynamodb://<region>                      AWS, default endpoint resolution
//	http(s)://host:port[?region=<region>]    DynamoDB Local or LocalStack
type Endpoint struct {
	Region  string
	BaseURL string
}

// ParseEndpoint parses the endpoint string given to Connect.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}

	switch u.Scheme {
	case "dynamodb":
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("endpoint %q has no region", raw)
		}
		return Endpoint{Region: u.Host}, nil
	case "http", "https":
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("endpoint %q has no host", raw)
		}
		region := u.Query().Get("region")
		if region == "" {
			region = DefaultRegion
		}
		return Endpoint{Region: region, BaseURL: u.Scheme + "://" + u.Host}, nil
	}
	return Endpoint{}, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
}
