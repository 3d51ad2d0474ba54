package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// computeRowHash computes HMAC-SHA256(key, prevHash|at|peerID|epoch|kind|detail).
// Returns "" when key is nil (chain disabled).
func computeRowHash(key []byte, prevHash string, e EpochEvent) string {
	if len(key) == 0 {
		return ""
	}
	msg := fmt.Sprintf("%s|%d|%d|%d|%s|%s",
		prevHash,
		e.At.UnixNano(),
		e.PeerID,
		e.Epoch,
		e.Kind,
		e.Detail,
	)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
