package otcurve

import (
	"crypto/aes"
	"crypto/cipher"
)

// encryptCBC encrypts plaintext under AES-256-CBC, PKCS#7 padded, using key
// as both the cipher key and the initialization vector. Reusing the key as
// the IV is a deliberate (if unusual) choice carried over unchanged from the
// source protocol: both sides derive the same key independently via the OT
// exchange, so no IV needs to travel on the wire.
func encryptCBC(key [32]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cbc := cipher.NewCBCEncrypter(block, key[:aes.BlockSize])
	cbc.CryptBlocks(out, padded)
	return out, nil
}

// decryptCBC reverses encryptCBC.
func decryptCBC(key [32]byte, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrInvalidMessage
	}
	out := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, key[:aes.BlockSize])
	cbc.CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+padLen)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrInvalidMessage
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > len(b) {
		return nil, ErrInvalidMessage
	}
	for _, c := range b[len(b)-padLen:] {
		if int(c) != padLen {
			return nil, ErrInvalidMessage
		}
	}
	return b[:len(b)-padLen], nil
}
