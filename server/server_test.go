package server_test

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docstore-io/docstore/client"
	"github.com/docstore-io/docstore/proto"
	"github.com/docstore-io/docstore/server"
	"github.com/docstore-io/docstore/stats"
)

func startServer(t *testing.T) string {
	t.Helper()
	srv, err := server.New(0, stats.New())
	require.NoError(t, err)
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv.Addr().(*net.TCPAddr).String()
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	c, err := client.Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPingPong(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)
	resp, err := c.Send(proto.Ping())
	require.NoError(t, err)
	require.Equal(t, proto.Pong(), resp)
}

func TestPostThenGetEndToEnd(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)

	body := map[string]any{"name": "ada"}
	resp, err := c.Send(proto.Post("users", body))
	require.NoError(t, err)
	require.Equal(t, proto.RespID, resp.Kind)

	got, err := c.Send(proto.Get("users/" + resp.ID))
	require.NoError(t, err)
	require.Equal(t, proto.RespObject, got.Kind)
	require.Equal(t, resp.ID, got.Object.ID)
	require.Equal(t, body, got.Object.Value)
}

func TestGetUnknownCollection(t *testing.T) {
	addr := startServer(t)
	c := dial(t, addr)
	resp, err := c.Send(proto.Get("nope"))
	require.NoError(t, err)
	require.Equal(t, proto.ErrorResp("collection not found"), resp)
}

func TestIsolationAcrossConnections(t *testing.T) {
	addr := startServer(t)
	const clients = 2
	const perClient = 50

	errCh := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func() {
			c, err := client.Dial(addr)
			if err != nil {
				errCh <- err
				return
			}
			defer c.Close()
			for j := 0; j < perClient; j++ {
				resp, err := c.Send(proto.Post("shared", map[string]any{"j": float64(j)}))
				if err != nil {
					errCh <- err
					return
				}
				if resp.Kind != proto.RespID {
					errCh <- fmt.Errorf("unexpected response kind %s", resp.Kind)
					return
				}
			}
			errCh <- nil
		}()
	}
	for i := 0; i < clients; i++ {
		require.NoError(t, <-errCh)
	}

	c := dial(t, addr)
	resp, err := c.Send(proto.Get("shared"))
	require.NoError(t, err)
	require.Equal(t, proto.RespCollection, resp.Kind)
	require.Len(t, resp.Collection, clients*perClient)
}
