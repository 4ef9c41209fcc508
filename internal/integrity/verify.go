// Package integrity parses and checks the published hash of a snippet asset.
// Hashes are accepted in Subresource Integrity form ("sha384-<base64>") or
// as a bare hex digest, whose length selects the algorithm.
package integrity

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// ErrNoChecksum is returned when verification is asked for with an empty hash.
var ErrNoChecksum = errors.New("integrity: no checksum provided")

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

var strength = map[Algorithm]int{SHA256: 1, SHA384: 2, SHA512: 3}

func (a Algorithm) new() hash.Hash {
	switch a {
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	default:
		return sha256.New()
	}
}

// Digest is a parsed expected hash.
type Digest struct {
	Algorithm Algorithm
	Sum       []byte
}

// String renders d in SRI form.
func (d Digest) String() string {
	return string(d.Algorithm) + "-" + base64.StdEncoding.EncodeToString(d.Sum)
}

// Parse reads an SRI metadata string or a hex digest. When the SRI string
// lists several tokens the strongest algorithm wins; unknown algorithms are ignored.
func Parse(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Digest{}, ErrNoChecksum
	}

	if !strings.Contains(s, "-") {
		return parseHex(s)
	}

	var best Digest
	for _, token := range strings.Fields(s) {
		alg, b64, ok := strings.Cut(token, "-")
		if !ok {
			continue
		}
		a := Algorithm(strings.ToLower(alg))
		if _, known := strength[a]; !known {
			continue
		}
		// Options such as "?ct=application/javascript" follow the digest.
		b64, _, _ = strings.Cut(b64, "?")
		sum, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return Digest{}, fmt.Errorf("integrity: decode %s digest: %w", a, err)
		}
		if len(sum) != a.new().Size() {
			return Digest{}, fmt.Errorf("integrity: %s digest has %d bytes", a, len(sum))
		}
		if best.Algorithm == "" || strength[a] > strength[best.Algorithm] {
			best = Digest{Algorithm: a, Sum: sum}
		}
	}
	if best.Algorithm == "" {
		return Digest{}, fmt.Errorf("integrity: no supported digest in %q", s)
	}
	return best, nil
}

func parseHex(s string) (Digest, error) {
	sum, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return Digest{}, fmt.Errorf("integrity: invalid hex digest: %w", err)
	}
	switch len(sum) {
	case sha256.Size:
		return Digest{Algorithm: SHA256, Sum: sum}, nil
	case sha512.Size384:
		return Digest{Algorithm: SHA384, Sum: sum}, nil
	case sha512.Size:
		return Digest{Algorithm: SHA512, Sum: sum}, nil
	}
	return Digest{}, fmt.Errorf("integrity: hex digest has unsupported length %d", len(sum))
}

// FromHashFile extracts the hash from the content of a published hash file.
// The first whitespace separated token is used, so "sha384-... file.js"
// and sha256sum output both work.
func FromHashFile(content []byte) string {
	fields := strings.Fields(string(content))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Compute returns the SRI string of data for alg.
func Compute(data []byte, alg Algorithm) string {
	h := alg.new()
	h.Write(data)
	return Digest{Algorithm: alg, Sum: h.Sum(nil)}.String()
}

// VerifyReader checks the content of r against expected.
func VerifyReader(r io.Reader, expected string) error {
	d, err := Parse(expected)
	if err != nil {
		return err
	}
	h := d.Algorithm.new()
	if _, err := io.Copy(h, r); err != nil {
		return err
	}
	if actual := h.Sum(nil); !bytes.Equal(actual, d.Sum) {
		return fmt.Errorf("integrity: %s mismatch: expected %s, got %s",
			d.Algorithm, d, Digest{Algorithm: d.Algorithm, Sum: actual})
	}
	return nil
}

// VerifyFile checks the file at path against expected.
func VerifyFile(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return VerifyReader(f, expected)
}
