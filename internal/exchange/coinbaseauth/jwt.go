// Package coinbaseauth builds the short-lived ES256 JWT Coinbase's
// Advanced Trade websocket API requires on every connection: header
// {alg:ES256, typ:JWT, kid:key_name, nonce}, payload {iss:"cdp",
// sub:key_name, nbf:now, exp:now+120}.
package coinbaseauth

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the validity window Coinbase enforces on the auth JWT.
const TokenTTL = 120 * time.Second

// Signer holds a parsed EC private key and issues fresh tokens on demand;
// each token embeds a random nonce and a short expiry, so it is rebuilt
// per connection rather than cached.
type Signer struct {
	keyName    string
	privateKey *ecdsa.PrivateKey
}

// NewSigner parses a PEM-encoded EC private key (Coinbase's downloadable
// API key format) and binds it to keyName (the "organizations/.../apiKeys/..."
// resource name Coinbase issues alongside the key).
func NewSigner(keyName string, pemKey []byte) (*Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("coinbaseauth: no PEM block found in key")
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		// Coinbase also distributes PKCS#8-wrapped EC keys.
		parsed, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, errors.New("coinbaseauth: failed to parse EC private key: " + err.Error())
		}
		ecKey, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("coinbaseauth: PKCS#8 key is not an EC key")
		}
		key = ecKey
	}

	return &Signer{keyName: keyName, privateKey: key}, nil
}

type cdpClaims struct {
	jwt.RegisteredClaims
}

// Token mints a fresh ES256 JWT valid for TokenTTL from now.
func (s *Signer) Token() (string, error) {
	nonce, err := randomNonceHex(16)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := cdpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cdp",
			Subject:   s.keyName,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyName
	token.Header["nonce"] = nonce

	return token.SignedString(s.privateKey)
}

func randomNonceHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
