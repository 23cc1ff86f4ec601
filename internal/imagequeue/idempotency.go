package imagequeue

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key derives the idempotency key spec.md §6 requires for at-least-once
// delivery: descriptionID when present, else a hash of (chapterID,
// content), so a redelivered request for the same description never
// double-dispatches an image generation.
func Key(descriptionID, chapterID, content string) string {
	if descriptionID != "" {
		return descriptionID
	}
	sum := sha256.Sum256([]byte(chapterID + "\x00" + content))
	return hex.EncodeToString(sum[:])
}
