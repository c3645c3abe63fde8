// Package grpcserver exposes the daemon's gRPC surface: the standard health service
// with an overall entry and one entry per scheduled job.
package grpcserver

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// JobService returns the health service name of a job, e.g. "kira.job.timer_expiry".
func JobService(job string) string { return "kira.job." + job }

// Health mirrors scheduler job health into grpc_health_v1. The overall service ""
// is SERVING only while every job is healthy.
type Health struct {
	hs *health.Server

	mu      sync.Mutex
	failing map[string]struct{}
}

// NewHealth marks every job SERVING.
func NewHealth(jobs []string) *Health {
	h := &Health{hs: health.NewServer(), failing: map[string]struct{}{}}
	for _, j := range jobs {
		h.hs.SetServingStatus(JobService(j), healthpb.HealthCheckResponse_SERVING)
	}
	h.hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return h
}

// SetJob records the health of one job. Its signature matches scheduler.HealthFunc.
func (h *Health) SetJob(job string, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := healthpb.HealthCheckResponse_SERVING
	if healthy {
		delete(h.failing, job)
	} else {
		h.failing[job] = struct{}{}
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus(JobService(job), st)

	overall := healthpb.HealthCheckResponse_SERVING
	if len(h.failing) > 0 {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", overall)
}

// Failing lists unhealthy jobs in order.
func (h *Health) Failing() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.failing))
	for j := range h.failing {
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

// Shutdown flips every entry to NOT_SERVING ahead of a graceful stop.
func (h *Health) Shutdown() { h.hs.Shutdown() }

// New builds a gRPC server with recovery and logging interceptors and registers h.
// Reflection is enabled for development only.
func New(log *zap.Logger, h *Health, dev bool, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
	))
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.hs)
	if dev {
		reflection.Register(s)
	}
	return s
}
