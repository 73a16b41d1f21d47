// Package proof authenticates the origin of WOPI requests.
//
// The WOPI client signs every request with the private half of a key pair
// whose public halves it publishes in its discovery document. The host
// rebuilds the signed payload from the access token, the absolute request URL
// and the request timestamp, and verifies the signature headers against the
// current and previous public keys so that key rotation never breaks requests
// that were in flight while the client switched keys.
//
// Validation fails closed: any missing header, parse error, key lookup error
// or signature mismatch is a rejection.
package proof

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/wopihost/internal/clock"
	"github.com/marmos91/wopihost/internal/logger"
)

// Request headers carrying the proof.
const (
	HeaderProof     = "X-WOPI-Proof"
	HeaderProofOld  = "X-WOPI-ProofOld"
	HeaderTimestamp = "X-WOPI-TimeStamp"
)

// MaxAge is how far in the past a request timestamp may lie. Timestamps in
// the future are not bounded.
const MaxAge = 20 * time.Minute

// Rejection causes, reported through Result for logs and metrics. They are
// never sent to the client.
var (
	ErrMissingHeaders   = errors.New("missing proof headers")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrExpired          = errors.New("timestamp too old")
	ErrNoKeys           = errors.New("no proof keys available")
	ErrBadSignature     = errors.New("signature mismatch")
)

// KeySet is the pair of RSA public keys published by the client. Old is nil
// when the client has not rotated yet.
type KeySet struct {
	Current *rsa.PublicKey
	Old     *rsa.PublicKey
}

// KeyProvider supplies the client's current proof keys. Implementations may
// block (the discovery client fetches over HTTP) and must honour ctx.
type KeyProvider interface {
	ProofKeys(ctx context.Context) (KeySet, error)
}

// KeyRefresher is implemented by key providers that cache keys. After a
// signature mismatch the validator calls Invalidate and, when it returns
// true, reloads the keys and checks once more, so a client that rotated its
// keys is accepted before the cache would have expired.
type KeyRefresher interface {
	Invalidate() bool
}

// Validator checks proof headers against keys from a KeyProvider.
type Validator struct {
	keys  KeyProvider
	clock clock.Clock

	// publicURL, when set, replaces scheme and host of the request URL.
	// Needed behind TLS-terminating proxies, where the URL the client
	// signed differs from the one the host sees.
	publicURL string
}

// Config configures a Validator.
type Config struct {
	Keys KeyProvider

	// PublicURL is the externally visible base URL, e.g.
	// "https://wopi.example.com". Empty derives it from the request.
	PublicURL string

	Clock clock.Clock
}

// NewValidator creates a validator.
func NewValidator(cfg Config) *Validator {
	return &Validator{
		keys:      cfg.Keys,
		clock:     clock.OrReal(cfg.Clock),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

// Validate reports whether r carries a valid proof for accessToken.
func (v *Validator) Validate(ctx context.Context, r *http.Request, accessToken string) bool {
	err := v.Check(ctx, r, accessToken)
	if err != nil {
		logger.Debug("Proof rejected: %s %s: %v", r.Method, r.URL.Path, err)
		return false
	}
	return true
}

// Check is Validate with the rejection cause. A nil error means valid.
func (v *Validator) Check(ctx context.Context, r *http.Request, accessToken string) error {
	// ========================================================================
	// Step 1: Required headers
	// ========================================================================

	proof := r.Header.Get(HeaderProof)
	proofOld := r.Header.Get(HeaderProofOld)
	stamp := r.Header.Get(HeaderTimestamp)
	if proof == "" || stamp == "" {
		return ErrMissingHeaders
	}

	// ========================================================================
	// Step 2: Timestamp window
	// ========================================================================

	ts, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, stamp)
	}
	if v.clock.Now().Sub(time.UnixMilli(ts)) > MaxAge {
		return ErrExpired
	}

	// ========================================================================
	// Step 3: Canonical payload
	// ========================================================================

	digest := sha256.Sum256(Payload(accessToken, v.requestURL(r), ts))

	// ========================================================================
	// Step 4: Keys
	// ========================================================================

	keys, err := v.loadKeys(ctx)
	if err != nil {
		return err
	}

	// ========================================================================
	// Step 5: Any of (current, proof), (current, proofOld), (old, proof)
	// ========================================================================

	if matches(keys, digest[:], proof, proofOld) {
		return nil
	}

	// The client may have rotated since the keys were cached
	if refresher, ok := v.keys.(KeyRefresher); ok && refresher.Invalidate() {
		logger.Debug("Proof mismatch, reloading proof keys")
		keys, err = v.loadKeys(ctx)
		if err != nil {
			return err
		}
		if matches(keys, digest[:], proof, proofOld) {
			return nil
		}
	}
	return ErrBadSignature
}

func (v *Validator) loadKeys(ctx context.Context) (KeySet, error) {
	keys, err := v.keys.ProofKeys(ctx)
	if err != nil {
		return KeySet{}, fmt.Errorf("%w: %v", ErrNoKeys, err)
	}
	if keys.Current == nil {
		return KeySet{}, ErrNoKeys
	}
	return keys, nil
}

func matches(keys KeySet, digest []byte, proof, proofOld string) bool {
	if verify(keys.Current, digest, proof) {
		return true
	}
	if proofOld != "" && verify(keys.Current, digest, proofOld) {
		return true
	}
	return keys.Old != nil && verify(keys.Old, digest, proof)
}

// requestURL returns the absolute URL the client signed.
func (v *Validator) requestURL(r *http.Request) string {
	if v.publicURL != "" {
		return v.publicURL + r.URL.RequestURI()
	}
	return AbsoluteURL(r)
}

// AbsoluteURL reconstructs the absolute URL of r as seen by the server.
func AbsoluteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func verify(key *rsa.PublicKey, digest []byte, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest, sig) == nil
}

// Payload builds the byte sequence the client signs:
//
//	le32(len(token)) token le32(len(URL)) upper(URL) le32(8) le64(timestamp)
func Payload(accessToken, url string, timestamp int64) []byte {
	token := []byte(accessToken)
	upper := []byte(strings.ToUpper(url))

	buf := make([]byte, 0, 4+len(token)+4+len(upper)+4+8)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(token)))
	buf = append(buf, token...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(upper)))
	buf = append(buf, upper...)
	buf = binary.LittleEndian.AppendUint32(buf, 8)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(timestamp))
	return buf
}

// Sign produces a proof header value. It is the client side of Check and is
// used by tooling and tests.
func Sign(key *rsa.PrivateKey, accessToken, url string, timestamp int64) (string, error) {
	digest := sha256.Sum256(Payload(accessToken, url, timestamp))
	sig, err := rsa.SignPKCS1v15(nil, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
