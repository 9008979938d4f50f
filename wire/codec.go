package wire

import (
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/tinylib/msgp/msgp"

	"github.com/docstore-io/docstore/proto"
)

// Codec compresses/decompresses and (de)serializes Commands and Responses.
// A single Codec is shared across every connection: klauspost/compress's
// Encoder.EncodeAll/Decoder.DecodeAll are one-shot, stateless-per-call, and
// safe to invoke concurrently from many goroutines.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec builds a Codec fixed at zstd compression level 3 (spec §4.1),
// the closest of klauspost/compress's four speed tiers to reference zstd's
// level 3 (SpeedDefault targets the same fast/ratio tradeoff zone).
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, &EncodeError{Reason: err.Error()}
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// EncodeCommand serializes and compresses cmd into a ready-to-send frame
// payload (the caller still prefixes the 4-byte length via WriteFrame).
func (c *Codec) EncodeCommand(cmd proto.Command) ([]byte, error) {
	raw, err := marshalCommand(cmd)
	if err != nil {
		return nil, &EncodeError{Reason: err.Error()}
	}
	return c.enc.EncodeAll(raw, nil), nil
}

// DecodeCommand decompresses and deserializes a frame payload into a Command.
func (c *Codec) DecodeCommand(payload []byte) (proto.Command, error) {
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return proto.Command{}, &DecodeError{Reason: "bad zstd stream: " + err.Error()}
	}
	cmd, err := unmarshalCommand(raw)
	if err != nil {
		return proto.Command{}, &DecodeError{Reason: err.Error()}
	}
	return cmd, nil
}

// EncodeResponse serializes and compresses resp into a frame payload.
func (c *Codec) EncodeResponse(resp proto.Response) ([]byte, error) {
	raw, err := marshalResponse(resp)
	if err != nil {
		return nil, &EncodeError{Reason: err.Error()}
	}
	return c.enc.EncodeAll(raw, nil), nil
}

// DecodeResponse decompresses and deserializes a frame payload into a Response.
func (c *Codec) DecodeResponse(payload []byte) (proto.Response, error) {
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return proto.Response{}, &DecodeError{Reason: "bad zstd stream: " + err.Error()}
	}
	resp, err := unmarshalResponse(raw)
	if err != nil {
		return proto.Response{}, &DecodeError{Reason: err.Error()}
	}
	return resp, nil
}

//
// MessagePack encoding: externally-tagged sum types, {"<Variant>": <fields>}
//

func marshalCommand(cmd proto.Command) ([]byte, error) {
	var b []byte
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, string(cmd.Verb))
	switch cmd.Verb {
	case proto.VerbPing:
		b = msgp.AppendMapHeader(b, 0)
	case proto.VerbGet, proto.VerbDelete:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, "uri")
		b = msgp.AppendString(b, cmd.URI)
	case proto.VerbPost, proto.VerbPut, proto.VerbPatch:
		b = msgp.AppendMapHeader(b, 2)
		b = msgp.AppendString(b, "uri")
		b = msgp.AppendString(b, cmd.URI)
		b = msgp.AppendString(b, "body")
		var err error
		b, err = msgp.AppendIntf(b, cmd.Body)
		if err != nil {
			return nil, err
		}
	case proto.VerbDump:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, "file")
		b = msgp.AppendString(b, cmd.File)
	default:
		return nil, &EncodeError{Reason: "unknown command verb: " + string(cmd.Verb)}
	}
	return b, nil
}

func unmarshalCommand(raw []byte) (proto.Command, error) {
	outer, raw, err := readOuterMap(raw)
	if err != nil {
		return proto.Command{}, err
	}
	fields, _, err := readFieldMap(raw)
	if err != nil {
		return proto.Command{}, err
	}
	uri, _ := fields["uri"].(string)
	file, _ := fields["file"].(string)
	switch normalizeVariant(outer) {
	case string(proto.VerbPing):
		return proto.Ping(), nil
	case string(proto.VerbGet):
		return proto.Get(uri), nil
	case string(proto.VerbDelete):
		return proto.Delete(uri), nil
	case string(proto.VerbPost):
		return proto.Post(uri, fields["body"]), nil
	case string(proto.VerbPut):
		return proto.Put(uri, fields["body"]), nil
	case string(proto.VerbPatch):
		return proto.Patch(uri, fields["body"]), nil
	case string(proto.VerbDump):
		return proto.Dump(file), nil
	default:
		return proto.Command{}, &DecodeError{Reason: "unknown command variant: " + outer}
	}
}

func marshalResponse(resp proto.Response) ([]byte, error) {
	var b []byte
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, string(resp.Kind))
	switch resp.Kind {
	case proto.RespPong, proto.RespNull, proto.RespOK:
		b = msgp.AppendMapHeader(b, 0)
	case proto.RespID:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, "id")
		b = msgp.AppendString(b, resp.ID)
	case proto.RespObject:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, "object")
		var err error
		b, err = appendEnvelope(b, resp.Object)
		if err != nil {
			return nil, err
		}
	case proto.RespCollection:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, "collection")
		b = msgp.AppendArrayHeader(b, uint32(len(resp.Collection)))
		for _, e := range resp.Collection {
			var err error
			b, err = appendEnvelope(b, e)
			if err != nil {
				return nil, err
			}
		}
	case proto.RespError:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, "error")
		b = msgp.AppendString(b, resp.Error)
	default:
		return nil, &EncodeError{Reason: "unknown response kind: " + string(resp.Kind)}
	}
	return b, nil
}

func appendEnvelope(b []byte, e proto.Envelope) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "ID")
	b = msgp.AppendString(b, e.ID)
	b = msgp.AppendString(b, "value")
	return msgp.AppendIntf(b, e.Value)
}

func readEnvelope(raw []byte) (proto.Envelope, []byte, error) {
	sz, raw, err := msgp.ReadMapHeaderBytes(raw)
	if err != nil {
		return proto.Envelope{}, nil, err
	}
	var e proto.Envelope
	for i := uint32(0); i < sz; i++ {
		var key string
		key, raw, err = msgp.ReadStringBytes(raw)
		if err != nil {
			return proto.Envelope{}, nil, err
		}
		var val any
		val, raw, err = msgp.ReadIntfBytes(raw)
		if err != nil {
			return proto.Envelope{}, nil, err
		}
		switch strings.ToLower(key) {
		case "id":
			e.ID, _ = val.(string)
		case "value":
			e.Value = val
		}
	}
	return e, raw, nil
}

func unmarshalResponse(raw []byte) (proto.Response, error) {
	outer, rest, err := readOuterMap(raw)
	if err != nil {
		return proto.Response{}, err
	}
	switch normalizeVariant(outer) {
	case string(proto.RespPong):
		return proto.Pong(), nil
	case string(proto.RespNull):
		return proto.NullResp(), nil
	case string(proto.RespOK):
		return proto.OKResp(), nil
	case string(proto.RespID):
		fields, _, err := readFieldMap(rest)
		if err != nil {
			return proto.Response{}, err
		}
		id, _ := fields["id"].(string)
		return proto.IDResp(id), nil
	case string(proto.RespError):
		fields, _, err := readFieldMap(rest)
		if err != nil {
			return proto.Response{}, err
		}
		msg, _ := fields["error"].(string)
		return proto.ErrorResp(msg), nil
	case string(proto.RespObject):
		sz, body, err := msgp.ReadMapHeaderBytes(rest)
		if err != nil {
			return proto.Response{}, err
		}
		var obj proto.Envelope
		for i := uint32(0); i < sz; i++ {
			var key string
			key, body, err = msgp.ReadStringBytes(body)
			if err != nil {
				return proto.Response{}, err
			}
			if strings.EqualFold(key, "object") {
				obj, body, err = readEnvelope(body)
				if err != nil {
					return proto.Response{}, err
				}
			}
		}
		return proto.ObjectResp(obj), nil
	case string(proto.RespCollection):
		sz, body, err := msgp.ReadMapHeaderBytes(rest)
		if err != nil {
			return proto.Response{}, err
		}
		var list []proto.Envelope
		for i := uint32(0); i < sz; i++ {
			var key string
			key, body, err = msgp.ReadStringBytes(body)
			if err != nil {
				return proto.Response{}, err
			}
			if !strings.EqualFold(key, "collection") {
				continue
			}
			var n uint32
			n, body, err = msgp.ReadArrayHeaderBytes(body)
			if err != nil {
				return proto.Response{}, err
			}
			list = make([]proto.Envelope, 0, n)
			for j := uint32(0); j < n; j++ {
				var e proto.Envelope
				e, body, err = readEnvelope(body)
				if err != nil {
					return proto.Response{}, err
				}
				list = append(list, e)
			}
		}
		return proto.CollectionResp(list), nil
	default:
		return proto.Response{}, &DecodeError{Reason: "unknown response variant: " + outer}
	}
}

// readOuterMap reads the single {"<Variant>": <fields>} entry's key and
// returns the remaining bytes positioned at <fields>.
func readOuterMap(raw []byte) (variant string, rest []byte, err error) {
	sz, raw, err := msgp.ReadMapHeaderBytes(raw)
	if err != nil {
		return "", nil, err
	}
	if sz != 1 {
		return "", nil, &DecodeError{Reason: "expected single-key variant map"}
	}
	variant, raw, err = msgp.ReadStringBytes(raw)
	if err != nil {
		return "", nil, err
	}
	return variant, raw, nil
}

// readFieldMap decodes a variant's named-field map into a generic map,
// leaving Body/value typed as whatever ReadIntf produces (map[string]any,
// []any, string, float64, bool, nil).
func readFieldMap(raw []byte) (map[string]any, []byte, error) {
	sz, raw, err := msgp.ReadMapHeaderBytes(raw)
	if err != nil {
		return nil, nil, err
	}
	fields := make(map[string]any, sz)
	for i := uint32(0); i < sz; i++ {
		var key string
		key, raw, err = msgp.ReadStringBytes(raw)
		if err != nil {
			return nil, nil, err
		}
		var val any
		val, raw, err = msgp.ReadIntfBytes(raw)
		if err != nil {
			return nil, nil, err
		}
		fields[strings.ToLower(key)] = val
	}
	return fields, raw, nil
}

// normalizeVariant upper-cases a decoded variant tag so lowercase aliases
// (spec §4.1: "lowercase forms of each variant are accepted on decode") are
// recognized the same as the canonical uppercase form.
func normalizeVariant(tag string) string { return strings.ToUpper(tag) }
