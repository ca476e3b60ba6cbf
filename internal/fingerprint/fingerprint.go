// Package fingerprint computes deterministic digests identifying logically
// unique generation and evaluation requests for caching and deduplication.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dumb-meh/Sui-Amor/models"
)

// Namespace separates result kinds so generation and evaluation requests for
// the same payload never share cache entries or tickets.
type Namespace string

const (
	Affirmation Namespace = "affirmation"
	Evaluation  Namespace = "evaluation"
	Daily       Namespace = "daily"
	Monthly     Namespace = "monthly"
)

// Fingerprint is the structured digest. String() yields the final cache key.
type Fingerprint struct {
	Namespace Namespace
	SessionID string
	Version   string // alignment-set version
	Hash      string
}

// String renders ns:<session>:<version>:<hex>.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", f.Namespace, f.SessionID, f.Version, f.Hash)
}

// Compute digests (namespace, session id, canonical payload, alignment-set
// version). The canonical form sorts answers by question id, so two payloads
// with the same answers in different order produce identical fingerprints.
func Compute(ns Namespace, sessionID string, payload models.QuizPayload, alignmentVersion string) Fingerprint {
	normalized := string(ns) + "\x00" + sessionID + "\x00" + alignmentVersion + "\x00" + payload.Canonical()
	sum := sha256.Sum256([]byte(normalized))
	return Fingerprint{
		Namespace: ns,
		SessionID: sessionID,
		Version:   alignmentVersion,
		Hash:      hex.EncodeToString(sum[:]),
	}
}
