package runner

import (
	"crypto/tls"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pyresume/dashclient/internal/transport"
)

// DialGRPC opens a client connection whose calls carry the session
// credential and renew it through the same coordinator as HTTP calls.
// Plaintext is only used in local development.
func (e *Env) DialGRPC(target string) (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if !e.Config.IsLocal() {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	icfg := transport.InterceptorConfig{
		Store:   e.Store,
		Renewer: e.Coordinator,
		Logger:  e.Logger,
	}
	return grpc.NewClient(target,
		grpc.WithTransportCredentials(creds),
		grpc.WithUnaryInterceptor(transport.UnaryClientInterceptor(icfg)),
		grpc.WithStreamInterceptor(transport.StreamClientInterceptor(icfg)),
	)
}
