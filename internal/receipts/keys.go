package receipts

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
	"time"
)

// Object keys group receipts by calendar date, then account, then the
// expense reference chosen at presign time:
//
//	2026/03/10/<account_id>/<expense_ref>/receipts/<sha256(filename)><ext>
//
// The account segment is authoritative. It is derived from the
// authenticated context when the upload URL is signed, and checked
// again whenever a key is attached to an expense.

const keySegments = 7

const keyMarker = "receipts"

// BuildKey derives the object key for a receipt upload. The filename
// is hashed so client-chosen names never reach the bucket.
func BuildKey(accountID, expenseRef, filename, ext string) string {
	now := time.Now()
	datePrefix := fmt.Sprintf("%d/%02d/%02d", now.Year(), now.Month(), now.Day())
	return path.Join(datePrefix, accountID, expenseRef, keyMarker, hashFilename(filename)+ext)
}

func hashFilename(filename string) string {
	h := sha256.New()
	h.Write([]byte(filename))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// OwnsKey reports whether key sits under the given account's segment.
// Anything that does not match the full key shape is rejected.
func OwnsKey(accountID, key string) bool {
	if accountID == "" {
		return false
	}
	parts := strings.Split(key, "/")
	if len(parts) != keySegments {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return parts[3] == accountID && parts[5] == keyMarker
}
