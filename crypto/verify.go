package crypto

import "crypto/subtle"

// MinSignatureLength is the shortest signature any supported scheme accepts.
const MinSignatureLength = 64

// Verify reports whether signature authorizes message under pub. Malformed
// input (nil key, short or oversized signature, mismatched scheme tag, or a
// placeholder made of one repeated byte) is rejected before any curve
// arithmetic runs.
func Verify(message []byte, pub PublicKey, signature []byte) bool {
	if pub == nil {
		return false
	}
	return pub.Verify(message, signature)
}

// normalizeSignature strips an optional leading scheme tag and enforces the
// 64-byte body.
func normalizeSignature(scheme Scheme, signature []byte) ([]byte, bool) {
	if len(signature) < MinSignatureLength {
		return nil, false
	}
	sig := signature
	if len(sig) == MinSignatureLength+1 {
		if sig[0] != byte(scheme) {
			return nil, false
		}
		sig = sig[1:]
	}
	if len(sig) != MinSignatureLength {
		return nil, false
	}
	if isPlaceholder(sig) {
		return nil, false
	}
	return sig, true
}

// isPlaceholder reports whether every byte of sig equals the first one. The
// scan always covers the whole slice.
func isPlaceholder(sig []byte) bool {
	same := 1
	for _, b := range sig[1:] {
		same &= subtle.ConstantTimeByteEq(b, sig[0])
	}
	return same == 1
}
