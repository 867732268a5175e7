package health

import (
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCServer returns a gRPC server exposing grpc.health.v1.Health for
// service, kept in step with the checker's overall result.
func NewGRPCServer(c *Checker, service string) (*grpc.Server, *grpchealth.Server) {
	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	c.OnChange(func(healthy bool) {
		status := healthpb.HealthCheckResponse_SERVING
		if !healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus(service, status)
		hs.SetServingStatus("", status)
	})

	return srv, hs
}
