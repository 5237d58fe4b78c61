package sm

import (
	"encoding/binary"

	"emrtd/cryptoadapt"
)

// KeyType selects which of the two Secure Messaging session keys a KDF
// call derives, per Doc 9303 Part 11 §9.7.1's counter convention.
type KeyType uint32

const (
	// KeyTypeEnc is counter c = 1 (encryption/cipher key).
	KeyTypeEnc KeyType = 1
	// KeyTypeMac is counter c = 2 (MAC key).
	KeyTypeMac KeyType = 2
	// KeyTypePACE is counter c = 3, used only inside PACE to derive the
	// key the chip's nonce is encrypted under.
	KeyTypePACE KeyType = 3
)

// DeriveKey implements the K(K_seed, c) key derivation function: append
// the 4-byte big-endian counter to the seed, hash, then take the leading
// bytes appropriate to the cipher (SHA-1 truncated to 16 bytes for 3DES
// and AES-128, SHA-256 truncated to 24/32 bytes for AES-192/256) and,
// for 3DES, fix parity on each key half.
func DeriveKey(cipher cryptoadapt.Cipher, keyLenBytes int, seed []byte, c KeyType) ([]byte, error) {
	var ctr [4]byte
	binary.BigEndian.PutUint32(ctr[:], uint32(c))

	digest := digestForKeyLen(cipher, keyLenBytes)
	h, err := digest.New()
	if err != nil {
		return nil, err
	}
	h.Write(seed)
	h.Write(ctr[:])
	sum := h.Sum(nil)

	switch cipher {
	case cryptoadapt.Cipher3DES:
		key := make([]byte, 16)
		copy(key, sum[:16])
		fixDESParity(key)
		return key, nil
	case cryptoadapt.CipherAES:
		key := make([]byte, keyLenBytes)
		copy(key, sum[:keyLenBytes])
		return key, nil
	default:
		return nil, &UnsupportedCipherError{Cipher: cipher}
	}
}

// digestForKeyLen implements Doc 9303 IX Appendix's (H, m) table: SHA-1
// truncated to 16 bytes for 3DES and AES-128, SHA-256 truncated to 24/32
// bytes for AES-192/256.
func digestForKeyLen(cipher cryptoadapt.Cipher, keyLenBytes int) cryptoadapt.Digest {
	if cipher == cryptoadapt.Cipher3DES {
		return cryptoadapt.DigestSHA1
	}
	if keyLenBytes <= 16 {
		return cryptoadapt.DigestSHA1
	}
	return cryptoadapt.DigestSHA256
}

// fixDESParity sets odd parity on each byte of a (2-key, 16-byte) DES key,
// the convention BAC/PACE 3DES keys are always derived under.
func fixDESParity(key []byte) {
	for i, b := range key {
		parity := byte(0)
		for bit := 0; bit < 8; bit++ {
			parity ^= (b >> uint(bit)) & 1
		}
		if parity == 0 {
			key[i] ^= 1
		}
	}
}

// UnsupportedCipherError reports a cipher identifier the KDF has no
// digest-size mapping for.
type UnsupportedCipherError struct {
	Cipher cryptoadapt.Cipher
}

func (e *UnsupportedCipherError) Error() string { return "sm: unsupported cipher in key derivation" }
