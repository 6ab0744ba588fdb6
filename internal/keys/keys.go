// Package keys loads and creates ZeroMQ CURVE certificates.
//
// Certificates use the ZPL text layout written by czmq and pyzmq: a
// "curve" section holding Z85 encoded public-key and secret-key entries.
// The public file (name.key) omits the secret.
package keys

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// File names inside a key directory
const (
	ClientName       = "client"
	ServerName       = "server"
	PublicSuffix     = ".key"
	SecretSuffix     = ".key_secret"
	rawKeySize       = 32
	z85KeySize       = 40
	certificatePerms = 0o600
	directoryPerms   = 0o700
)

// ErrRemoteKeyNotFound is returned when the publisher's public key file does not exist
var ErrRemoteKeyNotFound = errors.New("keys: server public key not found")

// Certificate is a Z85 encoded CURVE keypair. Secret is empty for public certificates.
type Certificate struct {
	Public string
	Secret string
}

// Material is the raw key set needed to open a subscriber
type Material struct {
	LocalPublic  []byte
	LocalSecret  []byte
	RemotePublic []byte
}

var keyLine = regexp.MustCompile(`^(public-key|secret-key)\s*=\s*"([^"]*)"$`)

// NewCertificate generates a fresh CURVE keypair
func NewCertificate() (Certificate, error) {
	public, secret, err := zmq.NewCurveKeypair()
	if err != nil {
		return Certificate{}, fmt.Errorf("failed to generate curve keypair: %w", err)
	}
	return Certificate{Public: public, Secret: secret}, nil
}

// LoadCertificate reads a public or secret certificate file
func LoadCertificate(path string) (Certificate, error) {
	f, err := os.Open(path)
	if err != nil {
		return Certificate{}, err
	}
	defer f.Close()

	var cert Certificate
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := keyLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch m[1] {
		case "public-key":
			cert.Public = m[2]
		case "secret-key":
			cert.Secret = m[2]
		}
	}
	if err := scanner.Err(); err != nil {
		return Certificate{}, fmt.Errorf("failed to read certificate %s: %w", path, err)
	}

	if len(cert.Public) != z85KeySize {
		return Certificate{}, fmt.Errorf("certificate %s: missing or malformed public-key", path)
	}
	if cert.Secret != "" && len(cert.Secret) != z85KeySize {
		return Certificate{}, fmt.Errorf("certificate %s: malformed secret-key", path)
	}
	return cert, nil
}

// SaveCertificate writes name.key and, when the certificate has a secret,
// name.key_secret into dir. Files are created with 0600 permissions.
func SaveCertificate(dir, name string, cert Certificate) error {
	if err := os.MkdirAll(dir, directoryPerms); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	public := render("Public", Certificate{Public: cert.Public})
	if err := writeFile(filepath.Join(dir, name+PublicSuffix), public); err != nil {
		return err
	}
	if cert.Secret == "" {
		return nil
	}
	return writeFile(filepath.Join(dir, name+SecretSuffix), render("**Secret**", cert))
}

// EnsureCertificate creates a keypair named name in dir unless both of its
// files already exist. It reports whether a new pair was written.
func EnsureCertificate(dir, name string) (bool, error) {
	publicPath := filepath.Join(dir, name+PublicSuffix)
	secretPath := filepath.Join(dir, name+SecretSuffix)
	if exists(publicPath) && exists(secretPath) {
		return false, nil
	}

	cert, err := NewCertificate()
	if err != nil {
		return false, err
	}
	if err := SaveCertificate(dir, name, cert); err != nil {
		return false, err
	}
	return true, nil
}

// Load reads the client keypair from dir and the server public key from
// serverKeyPath, or from dir/server.key when serverKeyPath is empty.
func Load(dir, serverKeyPath string) (*Material, error) {
	if serverKeyPath == "" {
		serverKeyPath = filepath.Join(dir, ServerName+PublicSuffix)
	}
	if !exists(serverKeyPath) {
		return nil, fmt.Errorf("%w: %s", ErrRemoteKeyNotFound, serverKeyPath)
	}

	client, err := LoadCertificate(filepath.Join(dir, ClientName+SecretSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	if client.Secret == "" {
		return nil, fmt.Errorf("client certificate in %s has no secret-key", dir)
	}
	server, err := LoadCertificate(serverKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	var m Material
	if m.LocalPublic, err = Decode(client.Public); err != nil {
		return nil, fmt.Errorf("client public key: %w", err)
	}
	if m.LocalSecret, err = Decode(client.Secret); err != nil {
		return nil, fmt.Errorf("client secret key: %w", err)
	}
	if m.RemotePublic, err = Decode(server.Public); err != nil {
		return nil, fmt.Errorf("server public key: %w", err)
	}
	return &m, nil
}

// Decode turns a 40 character Z85 key into its 32 raw bytes
func Decode(z85 string) ([]byte, error) {
	if len(z85) != z85KeySize {
		return nil, fmt.Errorf("z85 key must be %d characters, got %d", z85KeySize, len(z85))
	}
	raw := zmq.Z85decode(z85)
	if len(raw) != rawKeySize {
		return nil, errors.New("invalid z85 key")
	}
	return []byte(raw), nil
}

func render(kind string, cert Certificate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#   ****  Generated on %s by sweepwatch  ****\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "#   ZeroMQ CURVE %s Certificate\n", kind)
	b.WriteString("\nmetadata\ncurve\n")
	fmt.Fprintf(&b, "    public-key = \"%s\"\n", cert.Public)
	if cert.Secret != "" {
		fmt.Fprintf(&b, "    secret-key = \"%s\"\n", cert.Secret)
	}
	return b.String()
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), certificatePerms); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, certificatePerms); err != nil {
		return fmt.Errorf("failed to restrict %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
