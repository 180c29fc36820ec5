package lnd

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/grpc/credentials"
	macaroon "gopkg.in/macaroon.v2"
)

var _ credentials.PerRPCCredentials = MacaroonCredential{}

func writeTestMacaroon(t *testing.T) (path string, raw []byte) {
	t.Helper()

	mac, err := macaroon.New([]byte("root-key"), []byte("0"), "lnd", macaroon.LatestVersion)
	if err != nil {
		t.Fatalf("failed to mint test macaroon: %v", err)
	}
	raw, err = mac.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal test macaroon: %v", err)
	}

	path = filepath.Join(t.TempDir(), "readonly.macaroon")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("failed to write macaroon file: %v", err)
	}
	return path, raw
}

func TestNewMacaroonCredential(t *testing.T) {
	path, raw := writeTestMacaroon(t)

	cred, err := NewMacaroonCredential(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	md, err := cred.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("GetRequestMetadata failed: %v", err)
	}
	if got, want := md["macaroon"], hex.EncodeToString(raw); got != want {
		t.Errorf("macaroon metadata: got %q, want %q", got, want)
	}

	if !cred.RequireTransportSecurity() {
		t.Error("macaroon credentials must require transport security")
	}
}

func TestNewMacaroonCredential_MissingFile(t *testing.T) {
	_, err := NewMacaroonCredential(filepath.Join(t.TempDir(), "nope.macaroon"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestNewMacaroonCredential_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.macaroon")
	if err := os.WriteFile(path, []byte("definitely not a macaroon"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := NewMacaroonCredential(path)
	if err == nil {
		t.Fatal("expected error for garbage file, got nil")
	}
}
