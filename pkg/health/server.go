package health

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes grpc.health.v1 for orchestrators. The overall status ("")
// and the named service follow the database ping.
type Server struct {
	log     *slog.Logger
	service string
	hs      *health.Server
	gs      *grpc.Server
}

func NewServer(log *slog.Logger, service string) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	s := &Server{log: log, service: service, hs: hs, gs: gs}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", status)
	s.hs.SetServingStatus(s.service, status)
}

// Check pings db once and records the result.
func (s *Server) Check(ctx context.Context, db Pinger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		s.log.Warn("health check failed", "err", err)
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) Watch(ctx context.Context, db Pinger, interval time.Duration) {
	s.Check(ctx, db)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check(ctx, db)
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.gs.Serve(lis)
}

func (s *Server) Run(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.gs.Serve(lis); err != nil {
			s.log.Error("grpc health server stopped", "err", err)
		}
	}()
	s.log.Info("grpc health listening", "addr", addr)
	return nil
}

func (s *Server) Stop() {
	s.hs.Shutdown()
	s.gs.GracefulStop()
}
