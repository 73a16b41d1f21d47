package proof

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// ParseKey builds an RSA public key from the base64 modulus and exponent
// published in the discovery document's proof-key element.
func ParseKey(modulus, exponent string) (*rsa.PublicKey, error) {
	n, err := base64.StdEncoding.DecodeString(modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	e, err := base64.StdEncoding.DecodeString(exponent)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	if len(n) == 0 || len(e) == 0 {
		return nil, fmt.Errorf("empty modulus or exponent")
	}

	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("unsupported exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}

// EncodeKey is the inverse of ParseKey.
func EncodeKey(key *rsa.PublicKey) (modulus, exponent string) {
	modulus = base64.StdEncoding.EncodeToString(key.N.Bytes())
	exponent = base64.StdEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())
	return modulus, exponent
}

// StaticKeyProvider serves a fixed KeySet, configured out of band.
type StaticKeyProvider struct {
	keys KeySet
}

var _ KeyProvider = (*StaticKeyProvider)(nil)

// NewStaticKeyProvider creates a provider for keys.
func NewStaticKeyProvider(keys KeySet) *StaticKeyProvider {
	return &StaticKeyProvider{keys: keys}
}

// StaticKeyConfig holds base64 modulus/exponent pairs. The old pair is
// optional.
type StaticKeyConfig struct {
	Modulus     string `mapstructure:"modulus"`
	Exponent    string `mapstructure:"exponent"`
	OldModulus  string `mapstructure:"old_modulus"`
	OldExponent string `mapstructure:"old_exponent"`
}

// NewStaticKeyProviderFromConfig parses the configured keys.
func NewStaticKeyProviderFromConfig(cfg StaticKeyConfig) (*StaticKeyProvider, error) {
	current, err := ParseKey(cfg.Modulus, cfg.Exponent)
	if err != nil {
		return nil, fmt.Errorf("current proof key: %w", err)
	}

	keys := KeySet{Current: current}
	if cfg.OldModulus != "" || cfg.OldExponent != "" {
		old, err := ParseKey(cfg.OldModulus, cfg.OldExponent)
		if err != nil {
			return nil, fmt.Errorf("old proof key: %w", err)
		}
		keys.Old = old
	}
	return NewStaticKeyProvider(keys), nil
}

func (p *StaticKeyProvider) ProofKeys(ctx context.Context) (KeySet, error) {
	if err := ctx.Err(); err != nil {
		return KeySet{}, err
	}
	return p.keys, nil
}
