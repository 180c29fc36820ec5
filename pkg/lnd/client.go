// Package lnd provides the gRPC client used to reach the monitored lnd node.
package lnd

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// LightningClient is the subset of lnrpc.LightningClient the exporter uses.
// It exists to allow dependency injection of a fake in tests.
type LightningClient interface {
	GetInfo(ctx context.Context, in *lnrpc.GetInfoRequest, opts ...grpc.CallOption) (*lnrpc.GetInfoResponse, error)
	ListPayments(ctx context.Context, in *lnrpc.ListPaymentsRequest, opts ...grpc.CallOption) (*lnrpc.ListPaymentsResponse, error)
	ListChannels(ctx context.Context, in *lnrpc.ListChannelsRequest, opts ...grpc.CallOption) (*lnrpc.ListChannelsResponse, error)
}

var _ LightningClient = (lnrpc.LightningClient)(nil)

// Dial connects to an lnd gRPC endpoint ("host:port").
//
// tlsCertPath and macaroonPath are both optional: without a cert the system
// root pool is used (for nodes behind a real certificate), and without a
// macaroon no authentication metadata is attached, which only works against
// nodes running with --no-macaroons.
//
// The returned ClientConn is owned by the caller and must be closed when
// the client is no longer needed.
func Dial(endpoint, tlsCertPath, macaroonPath string) (lnrpc.LightningClient, *grpc.ClientConn, error) {
	var transportCreds credentials.TransportCredentials
	if tlsCertPath != "" {
		creds, err := credentials.NewClientTLSFromFile(tlsCertPath, "")
		if err != nil {
			return nil, nil, fmt.Errorf("load lnd TLS certificate: %w", err)
		}
		transportCreds = creds
	} else {
		transportCreds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(transportCreds),
	}

	if macaroonPath != "" {
		cred, err := NewMacaroonCredential(macaroonPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load macaroon: %w", err)
		}
		opts = append(opts, grpc.WithPerRPCCredentials(cred))
	}

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial lnd at %s: %w", endpoint, err)
	}

	return lnrpc.NewLightningClient(conn), conn, nil
}
