package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCriticalComponentDownIsUnhealthy(t *testing.T) {
	c := NewChecker(nil, time.Minute)
	dbErr := errors.New("connection refused")
	c.RegisterDatabaseCheck(func(context.Context) error { return dbErr })
	c.RegisterAPICheck("llm", "http://127.0.0.1:1", &http.Client{Timeout: 100 * time.Millisecond})

	c.RunChecks(context.Background())

	status := c.GetStatus()
	assert.Equal(t, StatusDown, status["database"].Status)
	assert.Equal(t, "connection refused", status["database"].Error)
	assert.Equal(t, StatusDown, status["api-llm"].Status)
	assert.False(t, c.IsSystemHealthy())
}

func TestNonCriticalComponentDownIsHealthy(t *testing.T) {
	c := NewChecker(nil, time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	c.RegisterCheck("optional", false, func(context.Context) (Status, string, error) {
		return StatusDown, "off", errors.New("off")
	})

	c.RunChecks(context.Background())

	assert.True(t, c.IsSystemHealthy())
}

func TestAPICheckTreatsClientErrorsAsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewChecker(nil, time.Minute)
	c.RegisterAPICheck("llm", srv.URL, srv.Client())
	c.RunChecks(context.Background())

	assert.Equal(t, StatusUp, c.GetStatus()["api-llm"].Status)
}

func TestHandlerReportsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := true
	c := NewChecker(nil, time.Minute)
	c.RegisterRedisCheck(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	r := gin.New()
	r.GET("/health", c.Handler(func() gin.H { return gin.H{"sessions": 2} }))

	c.RunChecks(context.Background())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 2, body["sessions"])

	healthy = false
	c.RunChecks(context.Background())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGRPCHealthFollowsChecker(t *testing.T) {
	healthy := true
	c := NewChecker(nil, time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	srv, _ := NewGRPCServer(c, "radiance.chat")
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "radiance.chat"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	c.RunChecks(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "radiance.chat"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	healthy = false
	c.RunChecks(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "radiance.chat"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
