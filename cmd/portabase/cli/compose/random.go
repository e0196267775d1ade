package compose

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
)

// Randomness supplies the generated parts of a scaffold.
type Randomness interface {
	// Hex returns 2*n hex characters from n random bytes.
	Hex(n int) (string, error)

	// FreePort returns a TCP port that was free when asked.
	FreePort() (int, error)
}

// SystemRandom draws from crypto/rand and the kernel's port allocator.
type SystemRandom struct{}

func (SystemRandom) Hex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (SystemRandom) FreePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("finding a free port: %w", err)
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address %s", l.Addr())
	}
	return addr.Port, nil
}
