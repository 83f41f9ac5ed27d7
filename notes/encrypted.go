package notes

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lumenyx-chain/lumenyx/encrypt"
)

// SaveEncrypted writes the note sealed under a password asked from the
// terminal. The plaintext file is not written.
func (n *Note) SaveEncrypted(dir string) (string, error) {
	data, err := n.MarshalJSON()
	if err != nil {
		return "", err
	}
	sealed, err := encrypt.Seal(data)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create notes dir: %w", err)
	}
	path := filepath.Join(dir, n.FileName()+".enc")
	if err := os.WriteFile(path, []byte(sealed), 0600); err != nil {
		return "", fmt.Errorf("failed to write note file: %w", err)
	}
	return path, nil
}

// LoadEncrypted reads a note written by SaveEncrypted
func LoadEncrypted(path string) (*Note, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read note file: %w", err)
	}
	data, err := encrypt.Open(string(sealed))
	if err != nil {
		return nil, err
	}
	var n Note
	if err := n.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &n, nil
}
