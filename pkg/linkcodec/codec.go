// Package linkcodec converts a workspace's file contents to and from the
// compact string carried in the fragment of a share link.
//
// A link has the form
//
//	https://play.example/#<token>
//
// where token is the unpadded base64url encoding of the UTF-8 bytes of a JSON
// object mapping filename to code. Key order of the object follows the
// workspace order so that the same workspace always produces the same link.
package linkcodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// FragmentMarker separates the page URL from the encoded workspace
const FragmentMarker = "#"

var (
	// ErrEmptyLink is returned when a link carries no encoded state
	ErrEmptyLink = errors.New("link carries no workspace state")

	// ErrMalformedToken is returned when a token is not valid base64
	ErrMalformedToken = errors.New("malformed link token")
)

// Encode packs text into a URL-safe token.
func Encode(text string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(text))
}

// Decode is the exact inverse of Encode. Tokens produced by older clients
// with the standard alphabet and padding are accepted as well.
func Decode(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err == nil {
		return string(data), nil
	}

	data, stdErr := DecodeStd(token)
	if stdErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return string(data), nil
}

// DecodeStd decodes a token written with the standard base64 alphabet,
// padded or not.
func DecodeStd(token string) ([]byte, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	return base64.RawStdEncoding.DecodeString(token)
}

// TokenFromLink extracts the token from a full URL, a "#token" fragment or a
// bare token.
func TokenFromLink(link string) string {
	link = strings.TrimSpace(link)
	if idx := strings.Index(link, FragmentMarker); idx >= 0 {
		return link[idx+len(FragmentMarker):]
	}
	return link
}
