// Command docstore is the interactive client entry point (spec §6): it
// connects to a server and relays stdin lines to it, printing rendered
// responses to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/docstore-io/docstore/client"
	"github.com/docstore-io/docstore/server"
)

func main() {
	app := cli.NewApp()
	app.Name = "docstore"
	app.Usage = "interactive docstore client"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "host, H", Value: "127.0.0.1", Usage: "server host"},
		cli.IntFlag{Name: "port, p", Value: server.DefaultPort, Usage: "server port"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	addr := fmt.Sprintf("%s:%d", c.String("host"), c.Int("port"))
	conn, err := client.Dial(addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()
	return client.RunREPL(conn, os.Stdin, os.Stdout)
}
