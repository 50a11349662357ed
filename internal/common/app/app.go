package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received.
// A second signal exits immediately.
func CreateContextWithShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			log.Warnf("received %s, stopping after the current measurements", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		<-c
		log.Warn("received second signal, exiting")
		os.Exit(1)
	}()
	return ctx
}
