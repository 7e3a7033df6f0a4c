package notify

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases host and path",
			input: "https://API.Example.COM/Api/Loans/Documents",
			want:  "api.example.com/api/loans/documents",
		},
		{
			name:  "sorts query parameters",
			input: "https://api.example.com/loans?b=2&a=1",
			want:  "api.example.com/loans?a=1&b=2",
		},
		{
			name:  "no query",
			input: "https://api.example.com/loans",
			want:  "api.example.com/loans",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignRequestDeterministic(t *testing.T) {
	body := []byte(`{"document_url":"https://files.example.com/p.html"}`)

	sig1, err := signRequest("secret", "user-1", "1700000000",
		"https://api.example.com/api/loans/documents", "POST", "nonce-1", body)
	require.NoError(t, err)

	sig2, err := signRequest("secret", "user-1", "1700000000",
		"https://api.example.com/api/loans/documents", "POST", "nonce-1", body)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	// Any component change produces a different signature
	sig3, err := signRequest("secret", "user-1", "1700000000",
		"https://api.example.com/api/loans/documents", "POST", "nonce-2", body)
	require.NoError(t, err)
	assert.NotEqual(t, sig1, sig3)
}

func TestSignRequestMatchesReference(t *testing.T) {
	body := []byte(`{}`)
	sum := md5.Sum(body)
	payload := "user-1" + "1700000000" + "api.example.com/api/loans/documents" + "post" + "nonce-1" + hex.EncodeToString(sum[:])

	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write([]byte(payload))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	got, err := signRequest("secret", "user-1", "1700000000",
		"https://API.example.com/api/loans/documents", "POST", "nonce-1", body)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSignRequestEmptyBody(t *testing.T) {
	payload := "user-1" + "1700000000" + "api.example.com/healthz" + "get" + "n"
	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write([]byte(payload))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	got, err := signRequest("secret", "user-1", "1700000000",
		"https://api.example.com/healthz", "GET", "n", nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSignRequestQueryOrderIndependent(t *testing.T) {
	sig1, err := signRequest("secret", "u", "1", "https://api.example.com/x?a=1&b=2", "GET", "n", nil)
	require.NoError(t, err)
	sig2, err := signRequest("secret", "u", "1", "https://api.example.com/x?b=2&a=1", "GET", "n", nil)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)
}
