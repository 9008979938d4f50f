// Package client implements the interactive client's connect loop (spec
// §6): read lines from stdin, parse each with the grammar package, send it,
// and render the response in the human-readable forms the spec names.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"

	jsoniter "github.com/json-iterator/go"

	"github.com/docstore-io/docstore/grammar"
	"github.com/docstore-io/docstore/proto"
	"github.com/docstore-io/docstore/wire"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client holds one connection's codec and socket.
type Client struct {
	conn  net.Conn
	codec *wire.Codec
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	codec, err := wire.NewCodec()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, codec: codec}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Send encodes and sends cmd, then decodes and returns the Response.
func (c *Client) Send(cmd proto.Command) (proto.Response, error) {
	payload, err := c.codec.EncodeCommand(cmd)
	if err != nil {
		return proto.Response{}, err
	}
	if err := wire.WriteFrame(c.conn, payload); err != nil {
		return proto.Response{}, err
	}
	raw, err := wire.ReadFrame(c.conn)
	if err != nil {
		return proto.Response{}, err
	}
	return c.codec.DecodeResponse(raw)
}

// RunREPL reads one logical command per line from in, sends it, and writes
// the rendered response to out, until in is exhausted. A grammar parse
// failure is printed as "error parsing <reason>" and does not stop the loop
// (spec §6).
func RunREPL(c *Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		cmd, err := grammar.Parse(line)
		if err != nil {
			fmt.Fprintf(out, "error parsing %s\n", err)
			continue
		}
		resp, err := c.Send(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, Render(resp))
	}
	return scanner.Err()
}

// Render converts a Response into the human-readable line described in
// spec §6.
func Render(resp proto.Response) string {
	switch resp.Kind {
	case proto.RespPong:
		return "pong"
	case proto.RespOK:
		return "ok"
	case proto.RespNull:
		return "null"
	case proto.RespID:
		return resp.ID
	case proto.RespError:
		return "error: " + resp.Error
	case proto.RespObject:
		return renderJSON(map[string]any{"ID": resp.Object.ID, "value": resp.Object.Value})
	case proto.RespCollection:
		items := make([]string, 0, len(resp.Collection))
		for _, e := range resp.Collection {
			items = append(items, renderJSON(map[string]any{"ID": e.ID, "value": e.Value}))
		}
		return "[ " + joinComma(items) + " ]"
	default:
		return "error: unknown response"
	}
}

func renderJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "error: " + err.Error()
	}
	return string(b)
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it
	}
	return out
}
