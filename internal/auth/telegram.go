// Package auth verifies Telegram Mini App initData payloads against the bot
// token, independent of transport.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrInvalidSignature = errors.New("auth: invalid signature")
	ErrMalformedPayload = errors.New("auth: malformed payload")
)

// User is the identity embedded in a verified payload.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// Verifier checks initData signatures using the secret derived from the bot
// token. It holds no other state and performs no I/O.
type Verifier struct {
	secret []byte
}

// NewVerifier derives the signing secret: HMAC-SHA256 keyed with the literal
// string "WebAppData" over the bot token.
func NewVerifier(botToken string) *Verifier {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &Verifier{secret: mac.Sum(nil)}
}

// Verify checks the signature of a raw initData string and, on success,
// returns the embedded user identity. The payload is percent-decoded exactly
// once; residual escapes in values are the client's data, not ours to decode.
//
// Signature validity and user well-formedness are independent: a payload with
// a valid hash but an unparsable user field verifies with a nil identity.
func (v *Verifier) Verify(initData string) (*User, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, fmt.Errorf("%w: empty initData", ErrMalformedPayload)
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	claimed := values.Get("hash")
	if claimed == "" {
		return nil, fmt.Errorf("%w: missing hash field", ErrMalformedPayload)
	}
	// The claimed hash and the unused legacy signature field are never part
	// of the signed string.
	values.Del("hash")
	values.Del("signature")

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(dataCheckString(values)))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(claimed)) {
		return nil, ErrInvalidSignature
	}

	userRaw := values.Get("user")
	if userRaw == "" {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

// dataCheckString joins the decoded pairs as key=value lines, sorted by key
// byte-wise ascending, separated by newlines.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range values[k] {
			lines = append(lines, k+"="+v)
		}
	}
	return strings.Join(lines, "\n")
}
