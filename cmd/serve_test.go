package main

import (
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func TestDrainServer_WaitsForInflightRequests(t *testing.T) {
	// The drain must run on its own deadline: by the time we shut down,
	// the signal context is already cancelled, and draining with it would
	// abort in-flight requests immediately.
	var completed atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		completed.Store(true)
		w.WriteHeader(http.StatusOK)
	})

	port := getFreePort(t)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for the server to be ready.
	var ready bool
	for i := 0; i < 50; i++ {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			conn.Close()
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, ready, "server did not become ready in time")

	// Fire an in-flight request, then drain while it is still being served.
	respCh := make(chan error, 1)
	go func() {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/slow", port))
		if err == nil {
			resp.Body.Close()
		}
		respCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	drainServer(srv)

	select {
	case err := <-respCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request did not finish")
	}
	assert.True(t, completed.Load(), "in-flight request was aborted by shutdown")

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
