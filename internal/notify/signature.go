package notify

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// signRequest computes the request signature the system-of-record verifies:
// HMAC-SHA512 over the concatenation of user id, timestamp, normalized URL,
// lowercased method, nonce and the MD5 of the body, base64 encoded.
func signRequest(apiKey, userID, timestamp, rawURL, method, nonce string, body []byte) (string, error) {
	normalized, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	payload := userID + timestamp + normalized + strings.ToLower(method) + nonce + bodyMD5(body)

	mac := hmac.New(sha512.New, []byte(apiKey))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// normalizeURL lowercases host and path and sorts the query parameters, so
// both sides sign the same canonical form regardless of parameter order.
func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	normalized := strings.ToLower(u.Host + u.Path)
	if u.RawQuery == "" {
		return normalized, nil
	}

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			pairs = append(pairs, k+"="+v)
		}
	}
	return normalized + "?" + strings.Join(pairs, "&"), nil
}

func bodyMD5(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}
