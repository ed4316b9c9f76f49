package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/teamsync/sprint-scribe/internal/domain/entities"
)

// Canonicalize normalizes fact text before hashing: lowercased, whitespace
// collapsed to single spaces, trimmed. Semantically identical facts from
// repeated runs canonicalize to the same string.
func Canonicalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DedupKey computes the deterministic key for a fact: sha256 over the source
// meeting id, the fact kind and the canonicalized content, hex encoded.
// Stable across re-processing of an identical transcript.
func DedupKey(meetingID string, kind entities.FactKind, content string) string {
	h := sha256.New()
	h.Write([]byte(meetingID))
	h.Write([]byte{'|'})
	h.Write([]byte(kind))
	h.Write([]byte{'|'})
	h.Write([]byte(Canonicalize(content)))
	return hex.EncodeToString(h.Sum(nil))
}
