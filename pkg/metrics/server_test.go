package metrics

import (
	"io"
	"net/http"
	"testing"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"
)

func TestDebugServerServesMetrics(t *testing.T) {
	s := NewDebugServer(cometlog.NewNopLogger(), "127.0.0.1:0")
	require.NoError(t, s.Start())
	defer func() { _ = s.Stop() }()

	TotalAttestationRequests.Inc()

	res, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "oracle_total_attestation_requests")
	require.Contains(t, string(body), "oracle_seconds_since_last_attestation")
}
