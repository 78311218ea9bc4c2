package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag derives a strong validator from a document id and version.
func GenerateETag(id primitive.ObjectID, version int64) string {
	sum := sha1.Sum([]byte(id.Hex() + ":" + strconv.FormatInt(version, 10)))
	return fmt.Sprintf(`"%s"`, hex.EncodeToString(sum[:8]))
}

// MatchETag reports whether an If-None-Match or If-Match header names etag.
func MatchETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
