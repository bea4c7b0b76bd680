package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier, prefixed to make record kinds
// recognizable in logs ("col_…", "ptc_…", "itm_…").
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
