package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// forbidden characters are replaced before a name touches any backend; the
// set covers every character rejected by at least one supported filesystem or
// object store.
const forbiddenChars = `/\:*?"<>|`

// maxSafeNameBytes caps sanitized names; longer names get the hash suffix.
const maxSafeNameBytes = 200

// SafeName sanitizes a name for use as a path segment. Forbidden characters
// are replaced with underscores. If the result exceeds 200 bytes or was
// materially changed by sanitization, a 12-character hex MD5 of the original
// name is appended so distinct originals cannot collide after sanitization.
func SafeName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenChars, r) {
			return '_'
		}
		return r
	}, name)

	changed := sanitized != name
	if len(sanitized) > maxSafeNameBytes {
		sanitized = sanitized[:maxSafeNameBytes]
		changed = true
	}
	if changed {
		sum := md5.Sum([]byte(name))
		sanitized = sanitized + "_" + hex.EncodeToString(sum[:])[:12]
	}
	return sanitized
}

// TempRoot returns the staging directory for a sync job. Everything a job
// downloads lands under this root so cleanup is a single tree removal.
func TempRoot(jobID string) string {
	return filepath.Join(os.TempDir(), "sync_job", SafeName(jobID))
}

// TempFilePath returns the staging path for a named file within a job.
func TempFilePath(jobID, entityID, name string) string {
	return filepath.Join(TempRoot(jobID), fmt.Sprintf("%s_%s", SafeName(entityID), SafeName(name)))
}

// CleanupJobTemp removes the staging tree of a sync job.
func CleanupJobTemp(jobID string) error {
	if err := os.RemoveAll(TempRoot(jobID)); err != nil {
		return fmt.Errorf("failed to clean up job temp dir: %w", err)
	}
	return nil
}
