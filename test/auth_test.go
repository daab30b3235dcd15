package test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	apiv1 "github.com/drericflores/hstp/api/v1"
)

func listJobs(t *testing.T, addr string, creds credentials.TransportCredentials) error {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = apiv1.NewClient(conn).List(ctx)
	return err
}

func tlsCreds(t *testing.T, id identity, withClientCert bool) credentials.TransportCredentials {
	t.Helper()
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM([]byte(id.caCert)))

	cfg := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS13}
	if withClientCert {
		cert, err := tls.X509KeyPair([]byte(id.cert), []byte(id.key))
		require.NoError(t, err)
		cfg.Certificates = []tls.Certificate{cert}
	}
	return credentials.NewTLS(cfg)
}

func TestServerApp_Handshakes(t *testing.T) {
	p := newPKI(t)
	addr := getAvailableAddress(t)
	startServer(t, addr, p)

	require.NoError(t, listJobs(t, addr, tlsCreds(t, p.client1, true)))

	require.Error(t, listJobs(t, addr, insecure.NewCredentials()), "plaintext")
	require.Error(t, listJobs(t, addr, tlsCreds(t, p.client1, false)), "no client cert")
	require.Error(t, listJobs(t, addr, tlsCreds(t, p.fake, true)), "client cert from unknown CA")
}

func TestServerApp_ClientExpectsCorrectServerCa(t *testing.T) {
	p := newPKI(t)
	addr := getAvailableAddress(t)
	startServer(t, addr, p)

	id := p.client1
	id.caCert = newAuthority(t).certPEM
	require.Error(t, listJobs(t, addr, tlsCreds(t, id, true)))

	res := executeCliCommand(t, addr, id, "list")
	require.Error(t, res.err)
}
