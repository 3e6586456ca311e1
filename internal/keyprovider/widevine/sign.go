package widevine

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"mediaseal/internal/drm"
)

// signMessage produces the request signature for the configured credential.
// AES credentials encrypt the SHA-256 digest of the message with AES-CBC;
// RSA credentials sign the digest with RSA-PSS.
func signMessage(signer drm.SignerCredential, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)

	switch signer.Kind() {
	case drm.SignerAES:
		key, _ := signer.AES()
		return signAES(key, digest[:])
	case drm.SignerRSA:
		key, _ := signer.RSA()
		return signRSA(key, digest[:])
	}
	return nil, drm.Wrap(drm.ErrConfiguration, "widevine", "sign", "a signing credential is required", nil)
}

func signAES(key drm.AESSignerKey, digest []byte) ([]byte, error) {
	block, err := aes.NewCipher(key.Key)
	if err != nil {
		return nil, fmt.Errorf("aes signing key: %w", err)
	}
	if len(key.IV) != block.BlockSize() {
		return nil, fmt.Errorf("aes signing iv must be %d bytes, got %d", block.BlockSize(), len(key.IV))
	}

	padded := padPKCS7(digest, block.BlockSize())
	signature := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, key.IV).CryptBlocks(signature, padded)
	return signature, nil
}

func signRSA(key drm.RSASignerKey, digest []byte) ([]byte, error) {
	privateKey, err := parseRSAPrivateKey([]byte(key.PrivateKeyPEM))
	if err != nil {
		return nil, err
	}
	signature, err := rsa.SignPSS(rand.Reader, privateKey, crypto.SHA256, digest, nil)
	if err != nil {
		return nil, fmt.Errorf("rsa sign: %w", err)
	}
	return signature, nil
}

func parseRSAPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("rsa signing key is not valid PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse rsa signing key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not an RSA private key")
	}
	return key, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}
