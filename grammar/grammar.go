// Package grammar implements the client-side textual command grammar
// (spec §4.2): one logical command per input unit, with embedded '\'
// characters standing in for line breaks, converted into a proto.Command.
// The server never runs this parser; it only ever sees already-decoded
// Command values over the wire.
package grammar

import (
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/docstore-io/docstore/proto"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseError is the closed set of grammar failure modes named in spec §4.2.
type ParseError struct{ Kind, Detail string }

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Detail
}

func errNoCommandFound(verb string) error { return &ParseError{Kind: "NoCommandFound", Detail: verb} }
func errMissingURI() error                { return &ParseError{Kind: "MissingUri"} }
func errMissingBody() error                { return &ParseError{Kind: "MissingBody"} }
func errBodyParseFailed(reason string) error {
	return &ParseError{Kind: "BodyParseFailed", Detail: reason}
}
func errInvalidFormat(detail string) error { return &ParseError{Kind: "InvalidFormat", Detail: detail} }

var verbs = map[string]proto.Verb{
	"ping":   proto.VerbPing,
	"get":    proto.VerbGet,
	"post":   proto.VerbPost,
	"put":    proto.VerbPut,
	"patch":  proto.VerbPatch,
	"delete": proto.VerbDelete,
	"dump":   proto.VerbDump,
}

// Parse converts one logical command line into a Command. Embedded '\'
// bytes are treated as the line separator described in spec §4.2's grammar.
func Parse(line string) (proto.Command, error) {
	lines := strings.Split(line, `\`)
	first := strings.TrimSpace(lines[0])
	if first == "" {
		return proto.Command{}, errInvalidFormat("empty command")
	}

	fields := strings.SplitN(first, " ", 2)
	verbToken := strings.ToLower(strings.TrimSpace(fields[0]))
	verb, known := verbs[verbToken]
	if !known {
		return proto.Command{}, errNoCommandFound(verbToken)
	}

	var uri string
	if len(fields) > 1 {
		uri = strings.TrimSpace(fields[1])
	}

	switch verb {
	case proto.VerbPing:
		return proto.Ping(), nil
	case proto.VerbGet, proto.VerbDelete, proto.VerbDump:
		if uri == "" {
			return proto.Command{}, errMissingURI()
		}
		if verb == proto.VerbDump {
			return proto.Dump(uri), nil
		}
		if verb == proto.VerbGet {
			return proto.Get(uri), nil
		}
		return proto.Delete(uri), nil
	case proto.VerbPost, proto.VerbPut, proto.VerbPatch:
		if uri == "" {
			return proto.Command{}, errMissingURI()
		}
		if len(lines) < 2 {
			return proto.Command{}, errMissingBody()
		}
		body, err := parseBodyLine(strings.TrimSpace(lines[1]))
		if err != nil {
			return proto.Command{}, err
		}
		switch verb {
		case proto.VerbPost:
			return proto.Post(uri, body), nil
		case proto.VerbPut:
			return proto.Put(uri, body), nil
		default:
			return proto.Patch(uri, body), nil
		}
	}
	return proto.Command{}, errNoCommandFound(verbToken)
}

const bodyPrefix = "body "

func parseBodyLine(line string) (any, error) {
	if !strings.HasPrefix(line, bodyPrefix) {
		return nil, errMissingBody()
	}
	raw := strings.TrimSpace(line[len(bodyPrefix):])
	if raw == "" {
		return nil, errMissingBody()
	}
	var value any
	if err := json.UnmarshalFromString(raw, &value); err != nil {
		return nil, errBodyParseFailed(err.Error())
	}
	return value, nil
}
