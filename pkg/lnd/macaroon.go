package lnd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	macaroon "gopkg.in/macaroon.v2"
)

// MacaroonCredential implements grpc/credentials.PerRPCCredentials by
// attaching a hex-encoded macaroon to every RPC, the authentication scheme
// lnd expects.
type MacaroonCredential struct {
	hexMacaroon string
}

// NewMacaroonCredential reads a macaroon file and wraps it as a per-RPC
// credential. The file is parsed so a truncated or mis-pointed file fails
// at startup instead of as a cryptic RPC rejection later.
func NewMacaroonCredential(path string) (MacaroonCredential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return MacaroonCredential{}, err
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(raw); err != nil {
		return MacaroonCredential{}, fmt.Errorf("parse macaroon %s: %w", path, err)
	}

	return MacaroonCredential{hexMacaroon: hex.EncodeToString(raw)}, nil
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (m MacaroonCredential) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.hexMacaroon}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
// Macaroons are bearer credentials and must never travel over plaintext.
func (m MacaroonCredential) RequireTransportSecurity() bool { return true }
