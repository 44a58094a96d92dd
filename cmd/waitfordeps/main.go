package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type dependency struct {
	name string
	ping func(ctx context.Context) error
}

func main() {
	timeout := 60 * time.Second
	if raw := os.Getenv("WAIT_FOR_DEPS_TIMEOUT_SEC"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			fmt.Fprintf(os.Stderr, "invalid WAIT_FOR_DEPS_TIMEOUT_SEC: %q\n", raw)
			os.Exit(2)
		}
		timeout = time.Duration(secs) * time.Second
	}

	var deps []dependency
	if dsn := firstEnv("DATABASE_URL", "TEST_POSTGRES_DSN"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open postgres: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		deps = append(deps, dependency{name: "postgres", ping: db.PingContext})
	}
	if url := firstEnv("REDIS_URL", "TEST_REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse redis url: %v\n", err)
			os.Exit(2)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		deps = append(deps, dependency{name: "redis", ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	if len(deps) == 0 {
		fmt.Fprintln(os.Stderr, "DATABASE_URL or REDIS_URL is required")
		os.Exit(2)
	}

	deadline := time.Now().Add(timeout)
	var g errgroup.Group
	for _, d := range deps {
		g.Go(func() error { return waitFor(d, deadline) })
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func waitFor(d dependency, deadline time.Time) error {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := d.ping(ctx)
		cancel()
		if err == nil {
			fmt.Printf("%s ready\n", d.name)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s not ready by %s: %w", d.name, deadline.Format(time.RFC3339), err)
		}
		time.Sleep(2 * time.Second)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
