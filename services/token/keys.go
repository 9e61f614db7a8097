package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// KeySet holds the active signing key and every public key accepted for
// verification, indexed by kid.
type KeySet struct {
	signing    *rsa.PrivateKey
	signingKID string
	public     map[string]*rsa.PublicKey
	order      []string
}

// NewKeySet builds a key set from the signing key and any verification-only
// keys left over from earlier rotations.
func NewKeySet(signing *rsa.PrivateKey, additional ...*rsa.PublicKey) *KeySet {
	ks := &KeySet{
		signing: signing,
		public:  make(map[string]*rsa.PublicKey),
	}
	ks.signingKID = ks.add(&signing.PublicKey)
	for _, pub := range additional {
		ks.add(pub)
	}
	return ks
}

func (ks *KeySet) add(pub *rsa.PublicKey) string {
	kid := Thumbprint(pub)
	if _, ok := ks.public[kid]; !ok {
		ks.public[kid] = pub
		ks.order = append(ks.order, kid)
	}
	return kid
}

// LoadKeySet reads PEM encoded keys from disk. The public key must belong to
// the private key.
func LoadKeySet(privatePath, publicPath string, additionalPaths []string) (*KeySet, error) {
	privPEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	pub, err := loadPublicKey(publicPath)
	if err != nil {
		return nil, err
	}
	if pub.N.Cmp(priv.N) != 0 || pub.E != priv.E {
		return nil, fmt.Errorf("public key %s does not match the private key", publicPath)
	}

	var extra []*rsa.PublicKey
	for _, path := range additionalPaths {
		k, err := loadPublicKey(path)
		if err != nil {
			return nil, err
		}
		extra = append(extra, k)
	}
	return NewKeySet(priv, extra...), nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key %s: %w", path, err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key %s: %w", path, err)
	}
	return pub, nil
}

// SigningKID is the kid stamped on newly issued tokens
func (ks *KeySet) SigningKID() string {
	return ks.signingKID
}

// PublicKey returns the verification key for kid
func (ks *KeySet) PublicKey(kid string) (*rsa.PublicKey, bool) {
	k, ok := ks.public[kid]
	return k, ok
}

// Thumbprint computes the RFC 7638 JWK thumbprint of an RSA public key
func Thumbprint(pub *rsa.PublicKey) string {
	canonical := fmt.Sprintf(`{"e":"%s","kty":"RSA","n":"%s"}`, encodeExponent(pub.E), encodeBigInt(pub.N))
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func encodeBigInt(n *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(n.Bytes())
}

func encodeExponent(e int) string {
	return encodeBigInt(big.NewInt(int64(e)))
}
