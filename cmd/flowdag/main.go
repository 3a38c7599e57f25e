// Command flowdag loads a flow document, supplies variables, and either
// runs it once to a target output, streams its partial outputs, or serves
// it over HTTP (grounded on the teacher's main.go + runtime/app.go +
// runtime/http_handler.go).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"flowdag"
	"flowdag/runtime/action"
	"flowdag/runtime/blob"
	"flowdag/runtime/builtin"
	"flowdag/runtime/cache"
)

func main() {
	flowPath := flag.String("flow", "", "path to a flow YAML document")
	varsJSON := flag.String("vars", "{}", "JSON object of variables to supply")
	target := flag.String("target", "", "dotted target output path; defaults to the flow's configured default output")
	stream := flag.Bool("stream", false, "stream partial outputs instead of running to completion")
	serveAddr := flag.String("serve", "", "if set, serve this flow over HTTP at this address instead of running once")
	redisURL := flag.String("redis-url", "", "redis address for the cache repository; empty uses an in-process cache")
	flag.Parse()

	if *flowPath == "" {
		log.Fatal("flowdag: -flow is required")
	}

	var vars map[string]any
	if err := json.Unmarshal([]byte(*varsJSON), &vars); err != nil {
		log.Fatalf("flowdag: invalid -vars JSON: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	registry := action.NewRegistry()
	builtin.RegisterArithmetic(registry)
	builtin.RegisterEmbedding(registry)

	opts := flowdag.Options{
		Registry: registry,
		Cache:    newCache(*redisURL, logger),
		Blob:     blob.NewMemory(),
		Logger:   logger,
		RedisURL: *redisURL,
	}

	f, err := flowdag.FromFile(*flowPath, opts)
	if err != nil {
		log.Fatalf("flowdag: %v", err)
	}
	f.SetVars(vars)
	defer f.Close()

	if diags, err := f.Check(*target); err != nil {
		log.Fatalf("flowdag: %v", err)
	} else if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.String())
		}
		log.Fatal("flowdag: static check failed")
	}

	if *serveAddr != "" {
		serve(f, *serveAddr, logger)
		return
	}

	ctx := context.Background()
	if *stream {
		runStream(ctx, f, *target)
		return
	}
	runOnce(ctx, f, *target)
}

func newCache(redisURL string, logger *slog.Logger) cache.Repo {
	if redisURL == "" {
		return cache.NewMemory()
	}
	repo, err := cache.NewRedis(map[string]any{"addr": redisURL})
	if err != nil {
		logger.Warn("redis cache unavailable, falling back to in-process cache", "error", err)
		return cache.NewMemory()
	}
	return repo
}

func runOnce(ctx context.Context, f *flowdag.Flow, target string) {
	out, err := f.Run(ctx, target)
	if err != nil {
		log.Fatalf("flowdag: run failed: %v", err)
	}
	printJSON(out)
}

func runStream(ctx context.Context, f *flowdag.Flow, target string) {
	ch, err := f.Stream(ctx, target)
	if err != nil {
		log.Fatalf("flowdag: stream failed: %v", err)
	}
	for v := range ch {
		printJSON(v)
	}
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("flowdag: encode output: %v", err)
	}
	fmt.Println(string(b))
}

// serve exposes the flow as a single POST /run endpoint accepting
// {"vars": {...}, "target": "..."}.
func serve(f *flowdag.Flow, addr string, logger *slog.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	router.POST("/run", func(c *gin.Context) {
		var body struct {
			Vars   map[string]any `json:"vars"`
			Target string         `json:"target"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		f.SetVars(body.Vars)
		out, err := f.Run(c.Request.Context(), body.Target)
		if err != nil {
			logger.Error("flow execution failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	})

	server := &http.Server{Addr: addr, Handler: router}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info("flowdag server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("flowdag: server: %v", err)
	}
}
