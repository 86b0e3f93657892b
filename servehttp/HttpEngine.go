package servehttp

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caseflow/common"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 3 * time.Second

// StartHTTPServer serves the engine until SIGINT/SIGTERM, then drains
// in-flight requests before exiting. Bind address from HTTP_BIND,
// default ":8080".
func StartHTTPServer(engine *gin.Engine) {
	addr := os.Getenv("HTTP_BIND")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		logrus.Infof("%s listening on %s", common.GetServiceName(), addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("listen on %s: %v", addr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	// kill -9 sends SIGKILL and cannot be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Infof("%s received shutdown signal, draining requests", common.GetServiceName())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("http server shutdown: %v", err)
	}
	logrus.Infof("%s exiting", common.GetServiceName())
}
