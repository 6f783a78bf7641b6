package validators

import (
	"errors"
	"strings"
)

var ErrMissingToken = errors.New("missing bearer token")

const bearerScheme = "bearer"

// BearerToken extracts the token from an Authorization header value. The
// scheme prefix is optional; a scheme with no credentials counts as missing.
func BearerToken(header string) (string, error) {
	token := strings.TrimSpace(header)
	if scheme, rest, found := strings.Cut(token, " "); found && strings.EqualFold(scheme, bearerScheme) {
		token = strings.TrimSpace(rest)
	} else if strings.EqualFold(token, bearerScheme) {
		token = ""
	}
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
