package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSpec      = "kea/spec/v1"
	DomainState     = "kea/state/v1"
	DomainAction    = "kea/action/v1"
	DomainLifecycle = "kea/lifecycle/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the structural shape of a logic definition. Two
// definitions sharing an identity must share a fingerprint.
func Fingerprint(shape map[string]any) (string, error) {
	canonical, err := MarshalCanonical(shape)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// StateHash hashes a full state tree. Identical trees hash identically
// regardless of map iteration order.
func StateHash(state map[string]any) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// ActionRecordID computes the content-addressed ID of a journaled action.
func ActionRecordID(session string, seq int64, action Action) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"session": session,
		"seq":     seq,
		"type":    action.Type,
		"payload": action.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("ActionRecordID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// LifecycleRecordID computes the content-addressed ID of a journaled
// mount/unmount transition.
func LifecycleRecordID(session string, seq int64, identity, event string) string {
	canonical, err := MarshalCanonical(map[string]any{
		"session":  session,
		"seq":      seq,
		"identity": identity,
		"event":    event,
	})
	if err != nil {
		// only strings and ints above
		panic(err)
	}
	return hashWithDomain(DomainLifecycle, canonical)
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when the state is known to be canonical.
func MustStateHash(state map[string]any) string {
	h, err := StateHash(state)
	if err != nil {
		panic(err)
	}
	return h
}
