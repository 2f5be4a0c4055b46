package client_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/fomc-oracle/client"
)

func TestSanitizeAddress(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"localhost:8001", "localhost:8001"},
		{"http://localhost:8001", "localhost:8001"},
		{"https://oracle-1.example.com:443/", "oracle-1.example.com:443"},
		{"tcp://10.0.0.1:2222", "10.0.0.1:2222"},
		{"tcp://[2001:db8::1234:5678]:2222", "[2001:db8::1234:5678]:2222"},
		{"[::]:2222", "[::]:2222"},
		{" 127.0.0.1:9000 ", "127.0.0.1:9000"},
	} {
		got, err := client.SanitizeAddress(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"localhost", "http://localhost", ":8001", "http://%zz"} {
		_, err := client.SanitizeAddress(bad)
		require.Error(t, err, bad)
	}
}

func TestParseServerList(t *testing.T) {
	addrs, err := client.ParseServerList("localhost:8001, http://localhost:8002,,localhost:8003")
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:8001", "localhost:8002", "localhost:8003"}, addrs)

	_, err = client.ParseServerList(" , ")
	require.Error(t, err)

	_, err = client.ParseServerList("localhost:8001,nohost")
	require.Error(t, err)
}
