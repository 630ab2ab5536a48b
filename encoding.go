package lnurl

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/btcsuite/btcutil/bech32"
)

const (
	humanReadablePart = "lnurl"

	// uriSchemePrefix is the URI scheme wallets prepend to LNURL strings
	// embedded in QR codes.
	uriSchemePrefix = "lightning:"
)

// DecodeURL decodes a bech32 LNURL string, with or without a leading
// 'lightning:' prefix, and returns the embedded URL. No validation is
// performed on the recovered URL; use Decode to also enforce the https
// requirement.
func DecodeURL(lnurl string) (string, error) {
	lnurl = strings.TrimPrefix(lnurl, uriSchemePrefix)

	hrp, data, err := bech32.DecodeNoLimit(lnurl)
	if err != nil {
		return "", err
	}

	if hrp != humanReadablePart {
		return "", fmt.Errorf("%w: expected '%s', got '%s'",
			ErrInvalidHRP, humanReadablePart, hrp)
	}

	data, err = bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: data is not valid UTF-8",
			ErrInvalidLNURL)
	}

	return string(data), nil
}

// Decode is the strict form of DecodeURL: the recovered URL must also pass
// the HttpsURL scheme checks.
func Decode(lnurl string) (HttpsURL, error) {
	url, err := DecodeURL(lnurl)
	if err != nil {
		return "", err
	}

	return NewHttpsURL(url)
}

// EncodeURL encodes a URL as an uppercase bech32 LNURL string without
// validating the URL first; use Encode to also enforce the https
// requirement.
func EncodeURL(url string) (string, error) {
	if !utf8.ValidString(url) {
		return "", fmt.Errorf("%w: url is not valid UTF-8",
			ErrInvalidLNURL)
	}

	converted, err := bech32.ConvertBits([]byte(url), 8, 5, true)
	if err != nil {
		return "", err
	}

	str, err := bech32.Encode(humanReadablePart, converted)
	if err != nil {
		return "", err
	}

	// Uppercase is the convention for QR code embedding.
	return strings.ToUpper(str), nil
}

// Encode is the strict form of EncodeURL: the URL must pass the HttpsURL
// scheme checks before being encoded.
func Encode(url string) (string, error) {
	validated, err := NewHttpsURL(url)
	if err != nil {
		return "", err
	}

	return EncodeURL(validated.String())
}
