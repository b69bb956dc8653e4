package network

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"microlend/crypto"
)

// Envelope headers travel as gRPC metadata and as HTTP headers.
const (
	HeaderCaller    = "x-lending-caller"
	HeaderTimestamp = "x-lending-timestamp"
	HeaderNonce     = "x-lending-nonce"
	HeaderSignature = "x-lending-signature"

	envelopeDomain       = "microlend/envelope/v1"
	defaultMaxSkew       = 2 * time.Minute
	defaultNonceCapacity = 4096
)

var (
	ErrCallerMissing    = errors.New("network: caller header missing")
	ErrCallerInvalid    = errors.New("network: caller address invalid")
	ErrSignatureMissing = errors.New("network: envelope signature missing")
	ErrSignatureInvalid = errors.New("network: envelope signature invalid")
	ErrEnvelopeStale    = errors.New("network: envelope timestamp outside allowed skew")
	ErrEnvelopeReplay   = errors.New("network: envelope nonce already used")
)

// Envelope identifies the account a mutating call executes as. The signature
// binds the caller to the method and the exact request body.
type Envelope struct {
	Method    string
	Caller    string
	Timestamp int64
	Nonce     string
	Body      []byte
}

// Digest returns the keccak hash signed by the caller.
func (e Envelope) Digest() []byte {
	bodyHash := crypto.Keccak256(e.Body)
	payload := strings.Join([]string{
		envelopeDomain,
		e.Method,
		e.Caller,
		strconv.FormatInt(e.Timestamp, 10),
		e.Nonce,
		hex.EncodeToString(bodyHash),
	}, "\n")
	return crypto.Keccak256([]byte(payload))
}

// SignedHeaders builds the envelope headers for a call made by key.
func SignedHeaders(key *crypto.PrivateKey, method string, body []byte, now time.Time) (map[string]string, error) {
	if key == nil {
		return nil, fmt.Errorf("network: signing key required")
	}
	env := Envelope{
		Method:    method,
		Caller:    key.PubKey().Address().String(),
		Timestamp: now.Unix(),
		Nonce:     uuid.NewString(),
		Body:      body,
	}
	sig, err := key.Sign(env.Digest())
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderCaller:    env.Caller,
		HeaderTimestamp: strconv.FormatInt(env.Timestamp, 10),
		HeaderNonce:     env.Nonce,
		HeaderSignature: hex.EncodeToString(sig),
	}, nil
}

// VerifierConfig tunes CallerVerifier.
type VerifierConfig struct {
	// RequireSignature rejects envelopes that only name a caller. When false
	// an unsigned caller header is trusted as-is; signed envelopes are still
	// checked.
	RequireSignature bool
	MaxSkew          time.Duration
	NonceCapacity    int
	// Nonces, when set, also records nonces durably so a restart does not
	// reopen the replay window.
	Nonces NonceStore
	Now    func() time.Time
}

// CallerVerifier resolves the caller of a mutating call from its envelope.
type CallerVerifier struct {
	requireSignature bool
	maxSkew          time.Duration
	now              func() time.Time
	store            NonceStore

	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

func NewCallerVerifier(cfg VerifierConfig) *CallerVerifier {
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = defaultMaxSkew
	}
	if cfg.NonceCapacity <= 0 {
		cfg.NonceCapacity = defaultNonceCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CallerVerifier{
		requireSignature: cfg.RequireSignature,
		maxSkew:          cfg.MaxSkew,
		now:              cfg.Now,
		store:            cfg.Nonces,
		// Nonces only need to outlive the window in which their timestamp is
		// accepted.
		seen: expirable.NewLRU[string, struct{}](cfg.NonceCapacity, nil, 2*cfg.MaxSkew),
	}
}

// Verify returns the caller named by the envelope headers read through get.
func (v *CallerVerifier) Verify(method string, body []byte, get func(string) string) (crypto.Address, error) {
	if v == nil {
		return crypto.Address{}, fmt.Errorf("network: caller verifier not configured")
	}
	callerHeader := strings.TrimSpace(get(HeaderCaller))
	if callerHeader == "" {
		return crypto.Address{}, ErrCallerMissing
	}
	caller, err := crypto.DecodeAddress(callerHeader)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrCallerInvalid, err)
	}
	sigHex := strings.TrimSpace(get(HeaderSignature))
	if sigHex == "" {
		if v.requireSignature {
			return crypto.Address{}, ErrSignatureMissing
		}
		return caller, nil
	}
	timestamp, err := strconv.ParseInt(strings.TrimSpace(get(HeaderTimestamp)), 10, 64)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
	}
	skew := v.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return crypto.Address{}, ErrEnvelopeStale
	}
	nonce := strings.TrimSpace(get(HeaderNonce))
	if nonce == "" {
		return crypto.Address{}, fmt.Errorf("%w: nonce required", ErrSignatureInvalid)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	env := Envelope{Method: method, Caller: callerHeader, Timestamp: timestamp, Nonce: nonce, Body: body}
	signer, err := crypto.RecoverAddress(env.Digest(), sig)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if signer.Raw() != caller.Raw() {
		return crypto.Address{}, fmt.Errorf("%w: signer does not match caller", ErrSignatureInvalid)
	}

	key := caller.String() + "|" + nonce
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen.Contains(key) {
		return crypto.Address{}, ErrEnvelopeReplay
	}
	if v.store != nil {
		seen, err := v.store.Observe(key, v.now())
		if err != nil {
			return crypto.Address{}, err
		}
		if seen {
			v.seen.Add(key, struct{}{})
			return crypto.Address{}, ErrEnvelopeReplay
		}
	}
	v.seen.Add(key, struct{}{})
	return caller, nil
}

// PruneNonces drops durable nonces whose timestamps can no longer pass the
// skew check.
func (v *CallerVerifier) PruneNonces() error {
	if v == nil || v.store == nil {
		return nil
	}
	return v.store.Prune(v.now().Add(-2 * v.maxSkew))
}
