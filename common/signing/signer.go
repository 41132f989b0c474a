// Package signing computes HMAC signatures that let a bridge server check an
// envelope came from a holder of the shared key.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

type Signer struct {
	secretKey []byte
}

func NewSigner(secretKey string) *Signer {
	return &Signer{
		secretKey: []byte(secretKey),
	}
}

// Sign returns the hex HMAC-SHA256 of msgID followed by the wire payload.
func (s *Signer) Sign(msgID string, payload []byte) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(msgID))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Signer) Verify(msgID string, payload []byte, signature string) bool {
	expected := s.Sign(msgID, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
