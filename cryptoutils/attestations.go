package cryptoutils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tdx_abi "github.com/google/go-tdx-guest/abi"
	tdx_client "github.com/google/go-tdx-guest/client"
	tdx_pb "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/verify"
)

// AttestationType names the kind of quote a provider produces.
type AttestationType string

const (
	DCAPAttestation  AttestationType = "qemu-tdx"
	DummyAttestation AttestationType = "dummy"
)

// ErrUnsupportedAttestation is returned for unknown attestation provider names.
var ErrUnsupportedAttestation = errors.New("unsupported attestation provider")

// AttestationProvider produces a quote binding reportData to the running TEE.
type AttestationProvider interface {
	AttestationType() AttestationType
	Attest(ctx context.Context, reportData [64]byte) ([]byte, error)
}

// AttestationProviderFor resolves a provider by name: "dcap", "remote" (which
// needs remoteAddr) or "dummy".
func AttestationProviderFor(name, remoteAddr string) (AttestationProvider, error) {
	switch name {
	case "dcap":
		return DCAPAttestationProvider{}, nil
	case "remote":
		if remoteAddr == "" {
			return nil, fmt.Errorf("%w: remote provider needs an address", ErrUnsupportedAttestation)
		}
		return &RemoteAttestationProvider{Address: remoteAddr}, nil
	case "dummy":
		return DummyAttestationProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAttestation, name)
	}
}

// MaxNonceSize is the largest verifier nonce a quote can carry.
const MaxNonceSize = 32

// ErrNonceTooLong is returned for verifier nonces over MaxNonceSize bytes.
var ErrNonceTooLong = errors.New("nonce too long")

// ReportDataForKey binds a public key and a verifier nonce to a quote:
// sha256(publicKeyPEM) in the first 32 bytes, the nonce zero-padded in the
// last 32. A nil nonce leaves the last 32 bytes zero.
func ReportDataForKey(publicKeyPEM, nonce []byte) ([64]byte, error) {
	var reportData [64]byte
	if len(nonce) > MaxNonceSize {
		return reportData, fmt.Errorf("%w: %d bytes, at most %d", ErrNonceTooLong, len(nonce), MaxNonceSize)
	}
	digest := sha256.Sum256(publicKeyPEM)
	copy(reportData[:32], digest[:])
	copy(reportData[32:], nonce)
	return reportData, nil
}

// RemoteAttestationProvider fetches quotes from a quote provider service
// serving GET {Address}/attest/{hex report data}.
type RemoteAttestationProvider struct {
	Address string
	Client  *http.Client
}

func (*RemoteAttestationProvider) AttestationType() AttestationType { return DCAPAttestation }

func (p *RemoteAttestationProvider) Attest(ctx context.Context, reportData [64]byte) ([]byte, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	url := fmt.Sprintf("%s/attest/%s", p.Address, hex.EncodeToString(reportData[:]))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating quote request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}
	return rawQuote, nil
}

// DCAPAttestationProvider reads TDX quotes from the local configfs-tsm
// interface, falling back to the legacy TDX guest device.
type DCAPAttestationProvider struct{}

func (DCAPAttestationProvider) AttestationType() AttestationType { return DCAPAttestation }

func (DCAPAttestationProvider) Attest(_ context.Context, reportData [64]byte) ([]byte, error) {
	qp := &tdx_client.LinuxConfigFsQuoteProvider{}
	if qp.IsSupported() == nil {
		return qp.GetRawQuote(reportData)
	}

	qd, err := tdx_client.OpenDevice()
	if err != nil {
		return nil, err
	}
	defer qd.Close()

	return tdx_client.GetRawQuote(qd, reportData)
}

// DummyAttestationProvider returns a placeholder quote for development
// outside a TEE.
type DummyAttestationProvider struct{}

func (DummyAttestationProvider) AttestationType() AttestationType {
	return DummyAttestation
}

func (DummyAttestationProvider) Attest(_ context.Context, reportData [64]byte) ([]byte, error) {
	return []byte(fmt.Sprintf("dummy attestation %x", reportData)), nil
}

// VerifyDCAPAttestation verifies a TDX quote and checks its report data.
// It returns the measurement registers keyed by index.
func VerifyDCAPAttestation(reportData [64]byte, report []byte) (map[int]string, error) {
	protoQuote, err := tdx_abi.QuoteToProto(report)
	if err != nil {
		return nil, fmt.Errorf("could not parse quote: %w", err)
	}

	v4Quote, ok := protoQuote.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported quote type: %T", protoQuote)
	}

	if err := verify.TdxQuote(protoQuote, verify.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("quote verification failed: %w", err)
	}

	if !bytes.Equal(v4Quote.TdQuoteBody.ReportData, reportData[:]) {
		return nil, fmt.Errorf("invalid report data %x, expected %x", v4Quote.TdQuoteBody.ReportData, reportData[:])
	}

	return map[int]string{
		0: hex.EncodeToString(v4Quote.TdQuoteBody.MrTd),
		1: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[0]),
		2: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[1]),
		3: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[2]),
		4: hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[3]),
		5: hex.EncodeToString(v4Quote.TdQuoteBody.MrConfigId),
		6: hex.EncodeToString(v4Quote.TdQuoteBody.MrOwner),
		7: hex.EncodeToString(v4Quote.TdQuoteBody.MrOwnerConfig),
	}, nil
}
