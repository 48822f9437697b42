package cryptoutils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttestationProviderFor(t *testing.T) {
	p, err := AttestationProviderFor("dcap", "")
	require.NoError(t, err)
	assert.Equal(t, DCAPAttestation, p.AttestationType())

	p, err = AttestationProviderFor("dummy", "")
	require.NoError(t, err)
	assert.Equal(t, DummyAttestation, p.AttestationType())

	p, err = AttestationProviderFor("remote", "http://localhost:8080")
	require.NoError(t, err)
	assert.IsType(t, &RemoteAttestationProvider{}, p)

	_, err = AttestationProviderFor("remote", "")
	assert.ErrorIs(t, err, ErrUnsupportedAttestation)

	_, err = AttestationProviderFor("sev-snp", "")
	assert.ErrorIs(t, err, ErrUnsupportedAttestation)
}

func TestReportDataForKey(t *testing.T) {
	pub := []byte("-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----\n")
	digest := sha256.Sum256(pub)

	reportData, err := ReportDataForKey(pub, nil)
	require.NoError(t, err)
	assert.Equal(t, digest[:], reportData[:32])
	assert.Equal(t, make([]byte, 32), reportData[32:])

	nonce := []byte{0xde, 0xad, 0xbe, 0xef}
	reportData, err = ReportDataForKey(pub, nonce)
	require.NoError(t, err)
	assert.Equal(t, digest[:], reportData[:32])
	assert.Equal(t, nonce, reportData[32:36])
	assert.Equal(t, make([]byte, 28), reportData[36:])

	full := bytes.Repeat([]byte{0x01}, MaxNonceSize)
	reportData, err = ReportDataForKey(pub, full)
	require.NoError(t, err)
	assert.Equal(t, full, reportData[32:])

	_, err = ReportDataForKey(pub, make([]byte, MaxNonceSize+1))
	assert.ErrorIs(t, err, ErrNonceTooLong)
}

func TestRemoteAttestationProvider(t *testing.T) {
	var reportData [64]byte
	copy(reportData[:], "report data")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attest/"+hex.EncodeToString(reportData[:]) {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("quote"))
	}))
	defer server.Close()

	p := &RemoteAttestationProvider{Address: server.URL}
	quote, err := p.Attest(context.Background(), reportData)
	require.NoError(t, err)
	assert.Equal(t, []byte("quote"), quote)

	var other [64]byte
	_, err = p.Attest(context.Background(), other)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 404"))
}

func TestDummyAttestationProvider(t *testing.T) {
	var reportData [64]byte
	reportData[0] = 0xab

	quote, err := DummyAttestationProvider{}.Attest(context.Background(), reportData)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(quote), "dummy attestation ab00"))
}

func TestVerifyDCAPAttestation_RejectsGarbage(t *testing.T) {
	_, err := VerifyDCAPAttestation([64]byte{}, []byte("dummy attestation"))
	assert.Error(t, err)
}
