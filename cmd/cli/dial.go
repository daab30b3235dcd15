package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	apiv1 "github.com/drericflores/hstp/api/v1"
)

const envconfigPrefix = "SRN"

// dialConfig shares the daemon's SRN_ variables: the address plus this
// client's key pair and the CA that signed the daemon's cert.
type dialConfig struct {
	Address   string `envconfig:"ADDRESS" default:"localhost:50051"`
	TLSKey    string `envconfig:"TLS_KEY" required:"true"`
	TLSCert   string `envconfig:"TLS_CERT" required:"true"`
	CATLSCert string `envconfig:"CA_TLS_CERT" required:"true"`
}

func dial(ctx context.Context) (*grpc.ClientConn, error) {
	var cfg dialConfig
	if err := envconfig.Process(envconfigPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "error getting connection settings from environment")
	}

	cert, err := tls.X509KeyPair([]byte(cfg.TLSCert), []byte(cfg.TLSKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse TLS cert/key from env")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(cfg.CATLSCert)) {
		return nil, errors.New("failed to parse CA cert from env")
	}

	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	})

	return grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(creds))
}

// withClient dials the daemon, runs fn and closes the connection.
func withClient(ctx context.Context, fn func(*apiv1.Client) error) error {
	conn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(apiv1.NewClient(conn))
}

func grpcCode(err error) codes.Code {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}

// explain turns the daemon's refusal codes into short messages.
func explain(err error, action string) error {
	switch grpcCode(err) {
	case codes.PermissionDenied:
		return errors.Errorf("Forbidden. Only the creator of the job can %s.", action)
	case codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition, codes.InvalidArgument, codes.Unavailable:
		return errors.New(status.Convert(err).Message())
	}
	return err
}
