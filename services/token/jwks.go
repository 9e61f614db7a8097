package token

// JWK is the public half of one RSA signing key
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the document served at /.well-known/jwks.json
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS lists every verification key, the signing key first
func (ks *KeySet) JWKS() JWKS {
	doc := JWKS{Keys: make([]JWK, 0, len(ks.order))}
	for _, kid := range ks.order {
		pub := ks.public[kid]
		doc.Keys = append(doc.Keys, JWK{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			Alg: "RS256",
			N:   encodeBigInt(pub.N),
			E:   encodeExponent(pub.E),
		})
	}
	return doc
}
