// Command docstored is the docstore server entry point: CLI flags, listener
// bind, and the accept loop (spec §6, §4.3).
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/docstore-io/docstore/cmn/nlog"
	"github.com/docstore-io/docstore/server"
	"github.com/docstore-io/docstore/stats"
)

func main() {
	app := cli.NewApp()
	app.Name = "docstored"
	app.Usage = "in-memory document store server"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "port, p", Value: server.DefaultPort, Usage: "listen port"},
		cli.StringFlag{Name: "log-dir", Value: "", Usage: "directory for log files (default: OS temp dir)"},
		cli.BoolFlag{Name: "logtostderr", Usage: "log to standard error instead of a file"},
		cli.BoolFlag{Name: "alsologtostderr", Usage: "log to standard error as well as a file"},
		cli.StringFlag{Name: "metrics-addr", Value: "", Usage: "if set, serve Prometheus /metrics on this address"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	nlog.SetLogDirRole(c.String("log-dir"), "server")
	nlog.SetToStderr(c.Bool("logtostderr"))
	nlog.SetAlsoStderr(c.Bool("alsologtostderr"))

	reg := stats.New()
	srv, err := server.New(c.Int("port"), reg)
	if err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}

	var g errgroup.Group
	g.Go(srv.Serve)

	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		metricsSrv := &http.Server{Addr: addr, Handler: mux}
		g.Go(func() error {
			err := metricsSrv.ListenAndServe()
			srv.Close()
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})
	}

	// Either goroutine returning tears the other down rather than leaving
	// it orphaned: a metrics crash closes the listener, and vice versa is
	// unnecessary since Serve returning already means the listener is gone.
	return g.Wait()
}
