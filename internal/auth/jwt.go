package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

var ErrUnsupportedJWT = errors.New("unsupported jwt")

const (
	// HMAC-SHA256 output size in bytes.
	hmacSHA256SigLen = 32
	// base64url-no-pad length of a 32-byte HMAC.
	hmacSHA256SigB64Len = 43
	maxJWTHeaderB64Len  = 4 * 1024
	maxJWTPayloadB64Len = 16 * 1024
	maxJWTLen           = maxJWTHeaderB64Len + 1 + maxJWTPayloadB64Len + 1 + hmacSHA256SigB64Len
)

// JWTVerifier validates HS256 access tokens minted by the cam-relay backend
// and extracts the signaling identity from them.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewJWTVerifier(secret string) JWTVerifier {
	return JWTVerifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Verify checks the token signature and time claims and returns the principal
// it asserts. The subject claim carries the username; the roles claim is an
// array of role names, either plain strings or {"authority": "ROLE_X"}
// objects depending on the issuer's serializer.
func (v JWTVerifier) Verify(token string) (Principal, error) {
	headerB64, payloadB64, sigB64, ok := splitJWTParts(token)
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(headerB64)
	if err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	var header map[string]any
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	alg, ok := header["alg"].(string)
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	if alg != "HS256" {
		return Principal{}, ErrUnsupportedJWT
	}
	if typRaw, ok := header["typ"]; ok {
		if _, ok := typRaw.(string); !ok {
			return Principal{}, ErrInvalidCredentials
		}
	}

	gotSig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil || len(gotSig) != hmacSHA256SigLen {
		return Principal{}, ErrInvalidCredentials
	}

	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write([]byte(headerB64))
	_, _ = mac.Write([]byte{'.'})
	_, _ = mac.Write([]byte(payloadB64))
	if !hmac.Equal(gotSig, mac.Sum(nil)) {
		return Principal{}, ErrInvalidCredentials
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Principal{}, ErrInvalidCredentials
	}

	dec := json.NewDecoder(bytes.NewReader(payloadJSON))
	dec.UseNumber()
	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	// json.Decoder allows trailing bytes after the first top-level value.
	// The payload must be exactly one JSON object.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Principal{}, ErrInvalidCredentials
	}

	now := v.now().Unix()

	expRaw, ok := claims["exp"]
	if !ok {
		return Principal{}, ErrInvalidCredentials
	}
	exp, err := claimUnixTime(expRaw)
	if err != nil || now >= exp {
		return Principal{}, ErrInvalidCredentials
	}

	if nbfRaw, ok := claims["nbf"]; ok {
		nbf, err := claimUnixTime(nbfRaw)
		if err != nil || now < nbf {
			return Principal{}, ErrInvalidCredentials
		}
	}
	if iatRaw, ok := claims["iat"]; ok {
		if _, err := claimUnixTime(iatRaw); err != nil {
			return Principal{}, ErrInvalidCredentials
		}
	}

	username, ok := claims["sub"].(string)
	if !ok || strings.TrimSpace(username) == "" {
		return Principal{}, ErrInvalidCredentials
	}

	roles, err := parseRolesClaim(claims["roles"])
	if err != nil {
		return Principal{}, err
	}

	return Principal{Username: username, Roles: roles}, nil
}

// parseRolesClaim accepts the two shapes the backend has emitted over time:
// ["RECEIVER"] and [{"authority":"ROLE_RECEIVER"}]. A missing claim yields no
// roles rather than an error; such a token admits as a user/admin peer.
func parseRolesClaim(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	var roles []string
	for _, item := range items {
		var name string
		switch x := item.(type) {
		case string:
			name = x
		case map[string]any:
			authority, ok := x["authority"].(string)
			if !ok {
				return nil, ErrInvalidCredentials
			}
			name = authority
		default:
			return nil, ErrInvalidCredentials
		}
		if role := normalizeRole(name); role != "" {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func claimUnixTime(v any) (int64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, ErrInvalidCredentials
	}
	return n.Int64()
}

func splitJWTParts(token string) (headerB64, payloadB64, sigB64 string, ok bool) {
	if token == "" || len(token) > maxJWTLen {
		return "", "", "", false
	}
	headerB64, rest, found := strings.Cut(token, ".")
	if !found {
		return "", "", "", false
	}
	payloadB64, sigB64, found = strings.Cut(rest, ".")
	if !found || strings.Contains(sigB64, ".") {
		return "", "", "", false
	}
	if headerB64 == "" || payloadB64 == "" || sigB64 == "" {
		return "", "", "", false
	}
	if len(headerB64) > maxJWTHeaderB64Len || len(payloadB64) > maxJWTPayloadB64Len {
		return "", "", "", false
	}
	if len(sigB64) != hmacSHA256SigB64Len {
		return "", "", "", false
	}
	if !isBase64urlNoPad(headerB64) || !isBase64urlNoPad(payloadB64) || !isBase64urlNoPad(sigB64) {
		return "", "", "", false
	}
	return headerB64, payloadB64, sigB64, true
}

// isBase64urlNoPad checks for canonical base64url without padding: valid
// alphabet, valid length (mod 4 != 1), and zero unused bits in the final
// quantum.
func isBase64urlNoPad(raw string) bool {
	if raw == "" || len(raw)%4 == 1 {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if _, ok := b64urlValue(raw[i]); !ok {
			return false
		}
	}
	last, _ := b64urlValue(raw[len(raw)-1])
	switch len(raw) % 4 {
	case 2:
		return last&0x0f == 0
	case 3:
		return last&0x03 == 0
	default:
		return true
	}
}

func b64urlValue(b byte) (byte, bool) {
	switch {
	case b >= 'A' && b <= 'Z':
		return b - 'A', true
	case b >= 'a' && b <= 'z':
		return b - 'a' + 26, true
	case b >= '0' && b <= '9':
		return b - '0' + 52, true
	case b == '-':
		return 62, true
	case b == '_':
		return 63, true
	default:
		return 0, false
	}
}
