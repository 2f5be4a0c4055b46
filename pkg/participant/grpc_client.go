package participant

import (
	"context"
	"sync"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/strangelove-ventures/fomc-oracle/client"
)

var _ Participant = &GRPCClient{}

// GRPCClient calls a remote participant over gRPC. The connection is dialed
// on first use and kept.
type GRPCClient struct {
	id      int
	address string

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func NewGRPCClient(id int, address string) *GRPCClient {
	return &GRPCClient{id: id, address: address}
}

func (c *GRPCClient) GetID() int { return c.id }

func (c *GRPCClient) GetAddress() string { return c.address }

func (c *GRPCClient) getConn() (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	grpcAddress, err := client.SanitizeAddress(c.address)
	if err != nil {
		return nil, err
	}
	conn, err := grpc.Dial(grpcAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
		grpc.WithUnaryInterceptor(grpc_retry.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

func (c *GRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Extract is not retried: a retry after quorum would only be discarded.
func (c *GRPCClient) Extract(ctx context.Context, text string) (*ExtractResponse, error) {
	conn, err := c.getConn()
	if err != nil {
		return nil, &TransportError{ID: c.id, Address: c.address, Err: err}
	}
	res := new(ExtractResponse)
	if err := conn.Invoke(ctx, grpcMethodExtract, &ExtractRequest{Text: text}, res); err != nil {
		return nil, c.fromStatus(err)
	}
	return res, nil
}

func (c *GRPCClient) Health(ctx context.Context) (*HealthResponse, error) {
	conn, err := c.getConn()
	if err != nil {
		return nil, &TransportError{ID: c.id, Address: c.address, Err: err}
	}
	res := new(HealthResponse)
	err = conn.Invoke(ctx, grpcMethodHealth, &HealthRequest{}, res,
		grpc_retry.WithMax(3),
		grpc_retry.WithBackoff(grpc_retry.BackoffExponential(100*time.Millisecond)),
	)
	if err != nil {
		return nil, c.fromStatus(err)
	}
	return res, nil
}

func (c *GRPCClient) fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &TransportError{ID: c.id, Address: c.address, Err: err}
	}
	switch st.Code() {
	case codes.NotFound:
		return &RemoteError{ID: c.id, Code: ErrCodeNoDecision}
	case codes.InvalidArgument:
		return &RemoteError{ID: c.id, Code: ErrCodeInvalidRequest, Message: st.Message()}
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return &TransportError{ID: c.id, Address: c.address, Err: err}
	default:
		return &RemoteError{ID: c.id, Code: ErrCodeInternal, Message: st.Message()}
	}
}
