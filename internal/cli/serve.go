package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atomnode/frontend/internal/config"
	"github.com/atomnode/frontend/internal/devmode"
)

// ServerDependencies holds all dependencies needed for the server
type ServerDependencies struct {
	ServerConfig config.ServerConfig
	EntryHandler http.Handler
	// Dev is nil outside development mode
	Dev *devmode.Mode
}

// RunServe starts the frontend server and blocks until it is shut down
func RunServe(deps ServerDependencies, out io.Writer) error {
	listener, server, err := StartServer(deps, out)
	if err != nil {
		return err
	}
	defer listener.Close()

	if deps.Dev != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := deps.Dev.Run(ctx); err != nil {
				log.Printf("Dev mode stopped: %v", err)
			}
		}()
	}

	return WaitForShutdown(server, nil)
}

// StartServer binds the listener, starts serving in the background and
// announces the bound URL on out. Nothing is written to out when binding fails.
func StartServer(deps ServerDependencies, out io.Writer) (net.Listener, *http.Server, error) {
	// Set up routes
	mux := http.NewServeMux()
	mux.Handle("/", deps.EntryHandler)
	if deps.Dev != nil {
		mux.Handle(devmode.EventsPath, deps.Dev.Hub)
	}

	// Create listener
	listener, err := net.Listen("tcp", deps.ServerConfig.Addr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create listener: %w", err)
	}

	var handler http.Handler = mux
	if deps.Dev != nil {
		handler = deps.Dev.Middleware(mux)
	}

	// Create HTTP server
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if deps.Dev != nil {
		// Event streams never go idle on their own
		server.RegisterOnShutdown(deps.Dev.Hub.CloseAll)
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s", listener.Addr().String())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	fmt.Fprintf(out, "Atom Node frontend running at %s\n", URL(listener))

	return listener, server, nil
}

// URL returns the local URL for a bound listener
func URL(listener net.Listener) string {
	return fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
}

// WaitForShutdown waits for a shutdown signal and gracefully shuts down the server
// If shutdown channel is nil, a new channel will be created and registered with signal.Notify
func WaitForShutdown(server *http.Server, shutdown chan os.Signal) error {
	return WaitForShutdownWithTimeout(server, shutdown, 30*time.Second)
}

// WaitForShutdownWithTimeout allows specifying a custom shutdown timeout (primarily for testing)
func WaitForShutdownWithTimeout(server *http.Server, shutdown chan os.Signal, shutdownTimeout time.Duration) error {
	// Channel to listen for interrupt or terminate signals
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)
	}

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("Received signal: %v, shutting down server...", sig)

	// Give outstanding requests time to complete
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		// Force close the server after timeout
		if err := server.Close(); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	log.Println("Server stopped")
	return nil
}
