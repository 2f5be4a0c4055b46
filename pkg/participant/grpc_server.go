package participant

import (
	"context"
	"errors"
	"net"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	cometservice "github.com/cometbft/cometbft/libs/service"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ participantGRPCServer = &GRPCServer{}

// GRPCServer exposes a Participant over gRPC.
type GRPCServer struct {
	cometservice.BaseService

	logger      cometlog.Logger
	participant Participant
	listenAddr  string

	ln     net.Listener
	server *grpc.Server
}

func NewGRPCServer(logger cometlog.Logger, participant Participant, listenAddr string) *GRPCServer {
	s := &GRPCServer{
		logger:      logger,
		participant: participant,
		listenAddr:  listenAddr,
	}
	s.BaseService = *cometservice.NewBaseService(logger, "ParticipantGRPCServer", s)
	return s
}

func (s *GRPCServer) OnStart() error {
	sock, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.ln = sock
	s.server = grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc_middleware.WithUnaryServerChain(
			grpc_recovery.UnaryServerInterceptor(),
			s.logInterceptor,
		),
	)
	s.server.RegisterService(&participantServiceDesc, s)
	s.logger.Info("Participant GRPC Listening", "address", sock.Addr().String())
	go func() {
		if err := s.server.Serve(sock); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("GRPC serve", "error", err)
		}
	}()
	return nil
}

func (s *GRPCServer) OnStop() {
	s.server.GracefulStop()
}

// Addr returns the bound listen address once started.
func (s *GRPCServer) Addr() string {
	if s.ln == nil {
		return s.listenAddr
	}
	return s.ln.Addr().String()
}

func (s *GRPCServer) Extract(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	res, err := s.participant.Extract(ctx, req.Text)
	if err != nil {
		switch code := errorCode(err); code {
		case ErrCodeNoDecision:
			return nil, status.Error(codes.NotFound, code)
		case ErrCodeInvalidRequest:
			return nil, status.Error(codes.InvalidArgument, code)
		default:
			return nil, status.Error(codes.Internal, code)
		}
	}
	return res, nil
}

func (s *GRPCServer) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	res, err := s.participant.Health(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func (s *GRPCServer) logInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	res, err := handler(ctx, req)
	s.logger.Debug("GRPC request", "method", info.FullMethod, "duration_ms", time.Since(start).Milliseconds(), "code", status.Code(err))
	return res, err
}
