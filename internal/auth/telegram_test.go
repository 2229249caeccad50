package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixtures generated with the reference algorithm (single percent-decode,
// hash/signature excluded, byte-sorted keys, newline-joined pairs,
// HMAC-SHA256 over an HMAC-SHA256("WebAppData", token) secret).
const (
	fixtureToken = "7217359088:AAFcl0uTESTtokenx9zKq3vR1mWn8LoQfE2"

	// Valid payload with a well-formed user object.
	fixtureInitData = "query_id=AAHdF6IQAAAAAN0XohDhrOrc&user=%7B%22id%22%3A279058397%2C%22first_name%22%3A%22Vladislav%22%2C%22last_name%22%3A%22Kibenko%22%2C%22username%22%3A%22vdkfrost%22%2C%22language_code%22%3A%22ru%22%2C%22is_premium%22%3Atrue%7D&auth_date=1717087395&hash=e71922fdd36d4b34da895a0c8b7d38a56ddd1d12b7807f782ea56d045284de9f"

	// Correctly signed payload whose user field is not JSON.
	fixtureBadUserJSON = "query_id=AAHdF6IQAAAAAN0XohDhrOrc&user=definitely-not-json&auth_date=1717087395&hash=b1337f4edd308ffd18f74b98c5adad8d2ff31a9b02de168e77c333deea0c026e"

	// Correctly signed payload carrying a legacy signature field, which must
	// be excluded from the signed set.
	fixtureLegacySignature = "auth_date=1717087395&user=%7B%22id%22%3A279058397%2C%22first_name%22%3A%22Vladislav%22%2C%22last_name%22%3A%22Kibenko%22%2C%22username%22%3A%22vdkfrost%22%2C%22language_code%22%3A%22ru%22%2C%22is_premium%22%3Atrue%7D&signature=legacy-ignored&hash=5f9e94e4977e654823194a5e8ce3177f81a5a739563cb89f0cbd585c7f37b0d8"
)

func TestVerify_ValidPayload(t *testing.T) {
	v := NewVerifier(fixtureToken)

	user, err := v.Verify(fixtureInitData)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(279058397), user.ID)
	assert.Equal(t, "Vladislav", user.FirstName)
	assert.Equal(t, "Kibenko", user.LastName)
	assert.Equal(t, "vdkfrost", user.Username)
	assert.Equal(t, "ru", user.LanguageCode)
	assert.True(t, user.IsPremium)
}

func TestVerify_FlippedHashCharFails(t *testing.T) {
	v := NewVerifier(fixtureToken)

	// Flip the last hash character (f -> 0).
	require.True(t, strings.HasSuffix(fixtureInitData, "9f"))
	tampered := fixtureInitData[:len(fixtureInitData)-1] + "0"

	user, err := v.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Nil(t, user)
}

func TestVerify_TamperedFieldFails(t *testing.T) {
	v := NewVerifier(fixtureToken)

	tampered := strings.Replace(fixtureInitData, "auth_date=1717087395", "auth_date=1717087396", 1)
	user, err := v.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Nil(t, user)
}

func TestVerify_WrongTokenFails(t *testing.T) {
	v := NewVerifier("000000:not-the-right-token")

	user, err := v.Verify(fixtureInitData)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Nil(t, user)
}

func TestVerify_MissingHashIsMalformed(t *testing.T) {
	v := NewVerifier(fixtureToken)

	withoutHash := strings.Split(fixtureInitData, "&hash=")[0]
	user, err := v.Verify(withoutHash)
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Nil(t, user)
}

func TestVerify_EmptyAndUndecodablePayloads(t *testing.T) {
	v := NewVerifier(fixtureToken)

	for _, initData := range []string{"", "   ", "a=%zz&hash=abc"} {
		user, err := v.Verify(initData)
		assert.ErrorIs(t, err, ErrMalformedPayload, "initData %q", initData)
		assert.Nil(t, user)
	}
}

func TestVerify_BadUserJSONStillVerifies(t *testing.T) {
	v := NewVerifier(fixtureToken)

	// Signature validity and payload well-formedness are independent: the
	// hash matches, so verification succeeds with a nil identity.
	user, err := v.Verify(fixtureBadUserJSON)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestVerify_LegacySignatureFieldExcluded(t *testing.T) {
	v := NewVerifier(fixtureToken)

	user, err := v.Verify(fixtureLegacySignature)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "vdkfrost", user.Username)
}

func TestVerify_RepeatedVerificationIsPure(t *testing.T) {
	v := NewVerifier(fixtureToken)

	first, err := v.Verify(fixtureInitData)
	require.NoError(t, err)
	second, err := v.Verify(fixtureInitData)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = v.Verify(strings.Split(fixtureInitData, "&hash=")[0])
	require.Error(t, err)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload error, got %v", err)
	}
}
