package filerepo

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	keyInfo   = "school-portal session snapshot"
)

// sealer encrypts snapshots with secretbox under a key derived from the
// configured secret.
type sealer struct {
	key [keySize]byte
}

func newSealer(secret string) *sealer {
	s := &sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		// hkdf only fails past 255 blocks of output
		panic(err)
	}
	return s
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "rand.Read")
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(box)))
	base64.StdEncoding.Encode(out, box)
	return out, nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	box := make([]byte, base64.StdEncoding.DecodedLen(len(sealed)))
	n, err := base64.StdEncoding.Decode(box, sealed)
	if err != nil {
		return nil, errors.Wrap(err, "base64 decode")
	}
	box = box[:n]
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, errors.New("sealed snapshot too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("sealed snapshot failed authentication")
	}
	return plain, nil
}
