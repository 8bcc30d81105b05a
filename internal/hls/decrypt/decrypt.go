// Package decrypt implements HLS segment decryption: AES-128-CBC with the
// key and IV named by a media playlist's #EXT-X-KEY tag, falling back to
// the media-sequence-derived IV when the playlist omits one.
package decrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// DeriveIV builds the RFC 8216 section 4.3.2.4 fallback IV: the media
// sequence number as a 16-byte big-endian value.
func DeriveIV(mediaSequence uint64) [16]byte {
	var iv [16]byte
	binary.BigEndian.PutUint64(iv[8:], mediaSequence)
	return iv
}

// CBC decrypts ciphertext with a 16-byte AES-128 key and a 16-byte IV,
// stripping the PKCS#7 padding RFC 8216 segments are encrypted with.
func CBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("decrypt: key must be 16 bytes, got %d", len(key))
	}
	if len(iv) != 16 {
		return nil, fmt.Errorf("decrypt: iv must be 16 bytes, got %d", len(iv))
	}
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("decrypt: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("decrypt: constructing cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpadPKCS7(plaintext)
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, fmt.Errorf("decrypt: invalid PKCS#7 padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("decrypt: malformed PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
