package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// keyMetadataFields are the caller-context fields that participate in key
// derivation, in a fixed order so the digest is deterministic.
var keyMetadataFields = []string{"case_id", "campaign_id", "user_id"}

// NormalizeRecipient lower-cases and trims an email address so that casing
// differences never produce distinct keys or miss the content-duplicate check.
func NormalizeRecipient(to string) string {
	return strings.ToLower(strings.TrimSpace(to))
}

// DeriveIdempotencyKey computes a deterministic key for a logical send from
// the email type, normalized recipient, trimmed subject, selected metadata
// fields and the current hour bucket. The hour bucket bounds how long a
// structurally identical request maps to the same key: after the bucket rolls
// over the same request is a new logical send.
func DeriveIdempotencyKey(req *EmailRequest, now time.Time) string {
	parts := []string{
		string(req.EmailType),
		NormalizeRecipient(req.To),
		strings.TrimSpace(req.Subject),
	}

	for _, field := range keyMetadataFields {
		if v, ok := req.Metadata[field]; ok && v != "" {
			parts = append(parts, field+"="+v)
		}
	}

	parts = append(parts, now.UTC().Format("2006010215"))

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:32]
}

// DeriveContentHash computes the digest used for duplicate-content detection.
// It covers subject and body only; it is not an identity.
func DeriveContentHash(subject, body string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(subject) + "|" + strings.TrimSpace(body)))
	return hex.EncodeToString(sum[:])
}

// bodyOf returns the content-bearing body of a request, preferring HTML.
func bodyOf(req *EmailRequest) string {
	if req.HTML != "" {
		return req.HTML
	}
	return req.Text
}

// contentHashOf derives the content hash for a full request.
func contentHashOf(req *EmailRequest) string {
	return DeriveContentHash(req.Subject, bodyOf(req))
}
