package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/fomc-oracle/pkg/tss"
	"github.com/strangelove-ventures/fomc-oracle/pkg/types"
)

func TestParseTxResponse(t *testing.T) {
	id, err := ParseTxResponse([]byte(`{"hash":"0xabc"}`))
	require.NoError(t, err)
	require.Equal(t, TxID("0xabc"), id)

	for _, body := range []string{
		`"0xabc"`,
		`{"transaction_hash":"0xabc"}`,
		`{"hash":""}`,
		`{"hash":"0xabc","vm_status":"ok"}`,
		`[]`,
		``,
	} {
		_, err := ParseTxResponse([]byte(body))
		require.ErrorIs(t, err, ErrUnrecognizedResponse, body)
	}
}

func TestRESTClientRotatesEndpoints(t *testing.T) {
	var badCalls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	var got EntryFunctionCall
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathEntryFunction, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"hash":"0x01"}`))
	}))
	defer good.Close()

	c, err := NewRESTClient(cometlog.NewNopLogger(), RESTConfig{
		Endpoints:     []string{bad.URL, good.URL},
		ModuleAddress: "0xcafe",
		RetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)

	tx, err := c.SubmitAttestation(context.Background(), Submission{
		Decision:  types.RateDecision{Magnitude: 50},
		Signature: tss.Signature{0xaa, 0xbb},
	})
	require.NoError(t, err)
	require.Equal(t, TxID("0x01"), tx)
	require.Equal(t, int32(1), badCalls.Load())
	require.Equal(t, "0xcafe::interest_rate::record_interest_rate_movement_v5", got.Function)
	require.Equal(t, []string{"50", "false", "0xaabb"}, got.Arguments)
}

func TestRESTClientDoesNotRetryUnrecognizedShape(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"result":{"hash":"0x01"}}`))
	}))
	defer srv.Close()

	c, err := NewRESTClient(cometlog.NewNopLogger(), RESTConfig{
		Endpoints:     []string{srv.URL},
		ModuleAddress: "0xcafe",
		RetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.RegisterGroupKey(context.Background(), tss.PublicKey{1, 2, 3})
	require.ErrorIs(t, err, ErrUnrecognizedResponse)
	require.Equal(t, int32(1), calls.Load())
}

type recordingClient struct {
	registrations int
	submissions   []Submission
}

func (r *recordingClient) RegisterGroupKey(context.Context, tss.PublicKey) (TxID, error) {
	r.registrations++
	return "reg", nil
}

func (r *recordingClient) SubmitAttestation(_ context.Context, sub Submission) (TxID, error) {
	r.submissions = append(r.submissions, sub)
	return "sub", nil
}

func TestVerifyingClient(t *testing.T) {
	ks, err := tss.GenerateKeys(nil, tss.MustThresholdConfig(1, 1))
	require.NoError(t, err)
	decision := types.RateDecision{Magnitude: 25, IsIncrease: true}
	sig, err := tss.Sign(ks.Shares[1].Scalar, decision.SignBytes())
	require.NoError(t, err)

	inner := &recordingClient{}
	c := NewVerifyingClient(inner, ks.GroupPublicKey)

	_, err = c.SubmitAttestation(context.Background(), Submission{
		Decision:  types.RateDecision{Magnitude: 25},
		Signature: sig,
	})
	require.ErrorIs(t, err, ErrUnverified)
	require.Zero(t, inner.registrations)
	require.Empty(t, inner.submissions)

	for i := 0; i < 2; i++ {
		tx, err := c.SubmitAttestation(context.Background(), Submission{Decision: decision, Signature: sig})
		require.NoError(t, err)
		require.Equal(t, TxID("sub"), tx)
	}
	require.Equal(t, 1, inner.registrations)
	require.Len(t, inner.submissions, 2)
	require.True(t, c.Registered())
}
