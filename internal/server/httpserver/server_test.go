package httpserver

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/webhost-go/internal/infra/tlscert"
	"github.com/yndnr/webhost-go/internal/server/admission"
	"github.com/yndnr/webhost-go/internal/server/config"
	"github.com/yndnr/webhost-go/internal/server/listener"
	"github.com/yndnr/webhost-go/internal/telemetry/metric"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bindLoopback(t *testing.T, specs ...listener.Spec) []listener.Bound {
	t.Helper()
	plan := &listener.Plan{Specs: specs}
	bound, err := plan.Bind(context.Background())
	require.NoError(t, err)
	return bound
}

func TestServer_ServesEveryListener(t *testing.T) {
	cert, err := tlscert.NewResolver().Development([]string{"127.0.0.1"})
	require.NoError(t, err)

	bound := bindLoopback(t,
		listener.Spec{Scheme: listener.SchemeHTTP, Address: "127.0.0.1:0"},
		listener.Spec{
			Scheme:      listener.SchemeHTTPS,
			Address:     "127.0.0.1:0",
			TLS:         &tls.Config{Certificates: []tls.Certificate{*cert}, MinVersion: tls.VersionTLS12},
			Development: true,
		},
	)

	reg := metric.NewRegistry()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, requestScheme(r))
	})
	s := New(handler, discardLogger(), reg)
	errCh := s.Serve(bound)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ListenersBound.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ListenersBound.WithLabelValues("https")))

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
		},
	}

	for _, tc := range []struct {
		url  string
		want string
	}{
		{"http://" + bound[0].Addr().String() + "/", "http"},
		{"https://" + bound[1].Addr().String() + "/", "https"},
	} {
		resp, err := client.Get(tc.url)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, tc.want, string(body))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "unexpected serve error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for listeners to stop")
	}
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.ListenersBound.WithLabelValues("http")))
}

func TestServer_ShutdownWithoutServe(t *testing.T) {
	s := New(http.NotFoundHandler(), discardLogger(), nil)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_Timeouts(t *testing.T) {
	s := New(http.NotFoundHandler(), discardLogger(), nil)
	srv := s.newHTTPServer(listener.Spec{Scheme: listener.SchemeHTTP})

	assert.Equal(t, ReadHeaderTimeout, srv.ReadHeaderTimeout)
	assert.Equal(t, ReadTimeout, srv.ReadTimeout)
	assert.Equal(t, WriteTimeout, srv.WriteTimeout)
	assert.Equal(t, IdleTimeout, srv.IdleTimeout)
	assert.Nil(t, srv.TLSConfig)
	assert.NotNil(t, srv.ErrorLog)
}

func TestServer_QueuedRequestGetsFullWriteTimeout(t *testing.T) {
	const writeTimeout = 200 * time.Millisecond

	settings := config.Default(config.ProfileProduction).WebServer
	settings.AllowedHosts = nil
	settings.StaticRoot = ""
	settings.RateLimit = 1
	settings.RateLimitQueue = 2
	settings.RateLimitRate = 0.5

	policies, err := admission.Build(&settings, discardLogger(), nil)
	require.NoError(t, err)
	defer policies.Close()

	router := NewRouter(&RouterConfig{
		Logger:       discardLogger(),
		Policies:     policies,
		WriteTimeout: writeTimeout,
	})

	bound := bindLoopback(t, listener.Spec{Scheme: listener.SchemeHTTP, Address: "127.0.0.1:0"})
	s := New(router, discardLogger(), nil, WithWriteTimeout(writeTimeout))
	errCh := s.Serve(bound)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
		for range errCh {
		}
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	url := "http://" + bound[0].Addr().String() + "/health"

	for i := 0; i < 2; i++ {
		start := time.Now()
		resp, err := client.Get(url)
		require.NoError(t, err, "request %d", i)
		_, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err, "request %d", i)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i)

		if i == 1 {
			// The second request waited for the next window, longer than
			// the write timeout.
			assert.Greater(t, time.Since(start), writeTimeout)
		}
	}
}

func TestServer_WithWriteTimeout(t *testing.T) {
	s := New(http.NotFoundHandler(), discardLogger(), nil, WithWriteTimeout(time.Minute))
	assert.Equal(t, time.Minute, s.newHTTPServer(listener.Spec{}).WriteTimeout)

	s = New(http.NotFoundHandler(), discardLogger(), nil, WithWriteTimeout(0))
	assert.Equal(t, WriteTimeout, s.newHTTPServer(listener.Spec{}).WriteTimeout)
}
