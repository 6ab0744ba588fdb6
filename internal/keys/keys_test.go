package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pyzmq writes certificates in this layout
const pyzmqSecret = `#   ****  Generated on 2024-06-01 10:00:00.000000 by pyzmq  ****
#   ZeroMQ CURVE **Secret** Certificate
#   DO NOT PROVIDE THIS FILE TO OTHER USERS nor change its permissions.

metadata
curve
    public-key = "rq:rM>}U?@Lns47E1%kR.o@n%FcmmsL/@{H8]yf7"
    secret-key = "JTKVSB%%)wK0E.X)V>+}o?pNmC{O&4W4b!Ni{Lh6"
`

func TestLoadCertificate_ParsesZPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.key_secret")
	require.NoError(t, os.WriteFile(path, []byte(pyzmqSecret), 0o600))

	cert, err := LoadCertificate(path)
	require.NoError(t, err)
	assert.Equal(t, "rq:rM>}U?@Lns47E1%kR.o@n%FcmmsL/@{H8]yf7", cert.Public)
	assert.Equal(t, "JTKVSB%%)wK0E.X)V>+}o?pNmC{O&4W4b!Ni{Lh6", cert.Secret)
}

func TestLoadCertificate_RejectsMissingPublicKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.key")
	require.NoError(t, os.WriteFile(path, []byte("metadata\ncurve\n"), 0o600))

	_, err := LoadCertificate(path)
	assert.Error(t, err)
}

func TestSaveCertificate_RoundTripAndPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	cert, err := NewCertificate()
	require.NoError(t, err)

	require.NoError(t, SaveCertificate(dir, ClientName, cert))

	public, err := LoadCertificate(filepath.Join(dir, ClientName+PublicSuffix))
	require.NoError(t, err)
	assert.Equal(t, cert.Public, public.Public)
	assert.Empty(t, public.Secret)

	secret, err := LoadCertificate(filepath.Join(dir, ClientName+SecretSuffix))
	require.NoError(t, err)
	assert.Equal(t, cert, secret)

	info, err := os.Stat(filepath.Join(dir, ClientName+SecretSuffix))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnsureCertificate_OnlyCreatesOnce(t *testing.T) {
	dir := t.TempDir()

	created, err := EnsureCertificate(dir, ClientName)
	require.NoError(t, err)
	assert.True(t, created)
	first, err := LoadCertificate(filepath.Join(dir, ClientName+SecretSuffix))
	require.NoError(t, err)

	created, err = EnsureCertificate(dir, ClientName)
	require.NoError(t, err)
	assert.False(t, created)
	second, err := LoadCertificate(filepath.Join(dir, ClientName+SecretSuffix))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoad_MissingServerKey(t *testing.T) {
	dir := t.TempDir()
	_, err := EnsureCertificate(dir, ClientName)
	require.NoError(t, err)

	_, err = Load(dir, "")
	assert.True(t, errors.Is(err, ErrRemoteKeyNotFound))

	_, err = Load(dir, filepath.Join(dir, "elsewhere.key"))
	assert.True(t, errors.Is(err, ErrRemoteKeyNotFound))
}

func TestLoad_ReturnsRawKeys(t *testing.T) {
	dir := t.TempDir()
	_, err := EnsureCertificate(dir, ClientName)
	require.NoError(t, err)

	server, err := NewCertificate()
	require.NoError(t, err)
	serverDir := t.TempDir()
	require.NoError(t, SaveCertificate(serverDir, ServerName, server))

	m, err := Load(dir, filepath.Join(serverDir, ServerName+PublicSuffix))
	require.NoError(t, err)
	assert.Len(t, m.LocalPublic, 32)
	assert.Len(t, m.LocalSecret, 32)
	assert.Len(t, m.RemotePublic, 32)

	want, err := Decode(server.Public)
	require.NoError(t, err)
	assert.Equal(t, want, m.RemotePublic)
}

func TestDecode_RejectsWrongLength(t *testing.T) {
	_, err := Decode("short")
	assert.Error(t, err)
}
