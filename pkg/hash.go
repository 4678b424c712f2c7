package dupeprune

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents a content fingerprint algorithm
type HashAlgorithm struct {
	Name    string
	Size    int
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case HashSHA256:
		return &HashAlgorithm{
			Name:    HashSHA256,
			Size:    sha256.Size,
			NewFunc: sha256.New,
		}, nil
	case HashSHA512:
		return &HashAlgorithm{
			Name:    HashSHA512,
			Size:    sha512.Size,
			NewFunc: sha512.New,
		}, nil
	case HashBLAKE2b256:
		return &HashAlgorithm{
			Name:    HashBLAKE2b256,
			Size:    blake2b.Size256,
			NewFunc: newBlake2b256,
		}, nil
	case HashBLAKE2b512:
		return &HashAlgorithm{
			Name:    HashBLAKE2b512,
			Size:    blake2b.Size,
			NewFunc: newBlake2b512,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedAlgorithm, name, strings.Join(SupportedHashAlgorithms(), ", "))
	}
}

// The blake2b constructors only fail for keys longer than 64 bytes
func newBlake2b256() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

func newBlake2b512() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}

// SupportedHashAlgorithms lists the accepted algorithm names
func SupportedHashAlgorithms() []string {
	return []string{HashSHA256, HashSHA512, HashBLAKE2b256, HashBLAKE2b512}
}

// HashReader streams r through the algorithm using a buffer of bufferSize
// bytes, checking for cancellation between reads
func HashReader(ctx context.Context, r io.Reader, algorithm *HashAlgorithm, bufferSize int) ([]byte, error) {
	if bufferSize <= 0 {
		bufferSize = 32 * 1024
	}

	hasher := algorithm.NewFunc()
	buffer := make([]byte, bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("hash interrupted: %w", err)
		}

		n, err := r.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return hasher.Sum(nil), nil
}

// hashFile opens a file with open and returns its fingerprint as a hex string
func hashFile(ctx context.Context, open Opener, filePath string, algorithm *HashAlgorithm, bufferSize int) (string, error) {
	file, err := open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	sum, err := HashReader(ctx, file, algorithm, bufferSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}
