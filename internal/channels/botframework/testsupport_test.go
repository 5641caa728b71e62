package botframework

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestKey generates an RSA key pair for signing test tokens.
func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

func intToBytes(v int) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := []byte{}
	for v > 0 {
		out = append([]byte{byte(v & 0xff)}, out...)
		v >>= 8
	}
	return out
}

// jwkFor encodes the public half of a key as a JWK document entry.
func jwkFor(kid string, key *rsa.PrivateKey) jwkKey {
	return jwkKey{
		Kid: kid,
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(intToBytes(key.PublicKey.E)),
	}
}

// discoveryServer serves an OpenID configuration document pointing at
// its own JWKS route. The handler for /keys can be swapped at runtime
// through the keysHandler pointer to simulate outages.
func discoveryServer(t *testing.T, keys []jwkKey) (*httptest.Server, *func(w http.ResponseWriter, r *http.Request)) {
	t.Helper()

	defaultKeys := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwksResponse{Keys: keys})
	}
	keysHandler := &defaultKeys

	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/.well-known/openidconfiguration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openIDConfiguration{JWKSURI: server.URL + "/keys"})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		(*keysHandler)(w, r)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, keysHandler
}

// signToken produces a signed RS256 bearer token with the given key id
// and audience.
func signToken(t *testing.T, key *rsa.PrivateKey, kid, audience string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"aud": audience,
		"iss": "https://api.botframework.com",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
