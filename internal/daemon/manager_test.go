// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve listen addr: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func TestNewManager_MissingHandler(t *testing.T) {
	_, err := NewManager(ServerConfig{}, nil)
	if !errors.Is(err, ErrMissingHandler) {
		t.Fatalf("NewManager() error = %v, want ErrMissingHandler", err)
	}
}

func TestManager_StartStop_OK(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mgr, err := NewManager(ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, handler)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestManager_ShutdownHooks_LIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, err := NewManager(ServerConfig{ListenAddr: "127.0.0.1:0"}, http.NotFoundHandler())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		mgr.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}

	want := []string{"third", "second", "first"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("ran %d hooks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("hook order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestManager_HookErrorSurfaced(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, err := NewManager(ServerConfig{ListenAddr: "127.0.0.1:0"}, http.NotFoundHandler())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	mgr.RegisterShutdownHook("broken", func(context.Context) error {
		return errors.New("close failed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		if err == nil || !strings.Contains(err.Error(), "hook broken") {
			t.Fatalf("Start() error = %v, want hook failure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}
}

func TestManager_Shutdown_TimesOut(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	requestStarted := make(chan struct{})
	releaseHandler := make(chan struct{})
	handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-requestStarted:
		default:
			close(requestStarted)
		}
		select {
		case <-r.Context().Done():
		case <-releaseHandler:
		}
	})

	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{
		ListenAddr:      addr,
		ShutdownTimeout: 100 * time.Millisecond,
	}, handler)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	if err := waitForListen(addr, 2*time.Second); err != nil {
		t.Fatalf("server did not start listening: %v", err)
	}

	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		client := &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
		}
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+addr, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-requestStarted:
		// In-flight request; shutdown should hit the timeout path.
	case <-time.After(2 * time.Second):
		t.Fatal("expected in-flight request before shutdown")
	}

	cancel()

	select {
	case err := <-errChan:
		if err == nil {
			t.Fatal("expected shutdown timeout error, got nil")
		}
		if !strings.Contains(err.Error(), "shutdown errors") {
			t.Fatalf("unexpected shutdown error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	close(releaseHandler)
	select {
	case <-requestDone:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request never finished")
	}
}

func TestManager_ListenFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Hold the port so ListenAndServe fails immediately.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	mgr, err := NewManager(ServerConfig{ListenAddr: ln.Addr().String()}, http.NotFoundHandler())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- mgr.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err == nil || !strings.Contains(err.Error(), "http server") {
			t.Fatalf("Start() error = %v, want listen failure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return on listen failure")
	}
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(ServerConfig{}, http.NotFoundHandler())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := mgr.Shutdown(context.Background()); !errors.Is(err, ErrManagerNotStarted) {
		t.Fatalf("Shutdown() error = %v, want ErrManagerNotStarted", err)
	}
}
