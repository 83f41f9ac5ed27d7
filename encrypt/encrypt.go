// Package encrypt provides password-based encryption of note files at
// rest using NaCl's SecretBox authenticated cipher with an scrypt-derived
// key. Passwords are read from the terminal, never from arguments.
package encrypt

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/term"
)

const saltSize = 16 // size in bytes for the salt

// deriveKey derives a 32-byte key from a password using scrypt.
func deriveKey(password, salt []byte) (*[32]byte, error) {
	key, err := scrypt.Key(password, salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	var keyArray [32]byte
	copy(keyArray[:], key)
	return &keyArray, nil
}

// sealRaw encrypts the plaintext using NaCl's secretbox.
// It returns raw bytes containing: nonce || ciphertext.
func sealRaw(plaintext []byte, key *[32]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// openRaw decrypts the raw data produced by sealRaw.
func openRaw(data []byte, key *[32]byte) ([]byte, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("encrypted data too short")
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])
	plaintext, ok := secretbox.Open(nil, data[24:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("decryption error: invalid password or corrupt data")
	}
	return plaintext, nil
}

func readPassword() ([]byte, error) {
	fmt.Print("Enter password: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return pass, nil
}

// Seal encrypts the plaintext with a password asked from the terminal and
// returns base64(salt || nonce || ciphertext)
func Seal(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to read random data: %w", err)
	}
	pass, err := readPassword()
	if err != nil {
		return "", err
	}
	key, err := deriveKey(pass, salt)
	if err != nil {
		return "", fmt.Errorf("key derivation failed: %w", err)
	}
	sealed, err := sealRaw(plaintext, key)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(append(salt, sealed...)), nil
}

// Open decrypts data produced by Seal, asking the password from the
// terminal
func Open(ciphertext string) ([]byte, error) {
	pass, err := readPassword()
	if err != nil {
		return nil, err
	}
	fullData, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	if len(fullData) < saltSize {
		return nil, fmt.Errorf("invalid input: missing salt")
	}
	key, err := deriveKey(pass, fullData[:saltSize])
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	plaintext, err := openRaw(fullData[saltSize:], key)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
