package validation

import (
	"net/url"
	"strings"
)

// ValidateURL checks that urlString is an absolute http(s) URL.
// Empty values pass; callers enforce presence separately.
func ValidateURL(urlString, fieldName string, requireHTTPS bool) error {
	if urlString == "" {
		return nil
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return Error{Field: fieldName, Message: "invalid URL format"}
	}
	if parsedURL.Scheme == "" {
		return Error{Field: fieldName, Message: "URL must include a scheme (http:// or https://)"}
	}
	if parsedURL.Host == "" {
		return Error{Field: fieldName, Message: "URL must include a host"}
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if requireHTTPS && scheme != "https" {
		return Error{Field: fieldName, Message: "URL must use HTTPS in production"}
	}
	if scheme != "http" && scheme != "https" {
		return Error{Field: fieldName, Message: "URL scheme must be http or https"}
	}
	return nil
}

// ValidateBaseURL is ValidateURL plus a ban on paths, queries and fragments.
func ValidateBaseURL(urlString, fieldName string, requireHTTPS bool) error {
	if err := ValidateURL(urlString, fieldName, requireHTTPS); err != nil {
		return err
	}
	if urlString == "" {
		return nil
	}

	parsedURL, _ := url.Parse(urlString)
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return Error{Field: fieldName, Message: "base URL must not contain a path"}
	}
	if parsedURL.RawQuery != "" {
		return Error{Field: fieldName, Message: "base URL must not contain query parameters"}
	}
	if parsedURL.Fragment != "" {
		return Error{Field: fieldName, Message: "base URL must not contain a fragment"}
	}
	return nil
}
