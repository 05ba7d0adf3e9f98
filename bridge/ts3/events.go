package ts3

import (
	"fmt"
	"strconv"
	"strings"
)

// inboundEvent is the decoded form of one TS3Query-style notification line.
// The actor's event loop type-switches on these; decodeEvent is the only
// place that knows the wire shape.
type inboundEvent interface{}

type messageEvent struct {
	targetMode      int
	invokerUniqueID string
	invokerName     string
	text            string
}

type canSendEvent struct {
	canSend bool
}

type fileUploadEvent struct {
	handle      string
	transferKey string
	host        string
	port        int
}

type filetransferFailedEvent struct {
	handle string
	err    error
}

type errorEvent struct {
	err error
}

// decodeEvent parses one unframed payload into an inboundEvent. Unknown
// notification names decode to nil, nil (ignored, not an error) since the
// real server emits many notifications this bridge has no use for.
func decodeEvent(raw []byte) (inboundEvent, error) {
	line := strings.TrimRight(string(raw), "\n\r")
	if line == "" {
		return nil, nil
	}
	fields := splitUnescaped(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty notification")
	}
	name := fields[0]
	args := parseArgs(fields[1:])

	switch name {
	case "notifytextmessage":
		mode, _ := strconv.Atoi(args["targetmode"])
		return messageEvent{
			targetMode:      mode,
			invokerUniqueID: args["invokeruid"],
			invokerName:     args["invokername"],
			text:            args["msg"],
		}, nil

	case "notifystatuschange":
		return canSendEvent{canSend: args["cansend"] == "1"}, nil

	case "notifyftinitupload":
		if args["status"] != "" && args["status"] != "0" {
			return filetransferFailedEvent{
				handle: args["clientftfid"],
				err:    fmt.Errorf("ftinitupload status=%s msg=%s", args["status"], args["msgfortransfer"]),
			}, nil
		}
		port, _ := strconv.Atoi(args["port"])
		return fileUploadEvent{
			handle:      args["clientftfid"],
			transferKey: args["ftkey"],
			host:        args["ip"],
			port:        port,
		}, nil

	case "notifyerror":
		if args["id"] == "" || args["id"] == "0" {
			return nil, nil
		}
		return errorEvent{err: fmt.Errorf("%s (id=%s)", args["msg"], args["id"])}, nil

	default:
		return nil, nil
	}
}

func parseArgs(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		out[k] = unescapeArg(v)
	}
	return out
}

// splitUnescaped splits on unescaped spaces, the way TS3Query delimits a
// command/notification's fields while still allowing \s-escaped spaces
// inside a single argument's value.
func splitUnescaped(s string) []string {
	var out []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			cur.WriteByte(c)
			escaped = true
		case c == ' ':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

var unescapeReplacer = strings.NewReplacer(
	"\\s", " ",
	"\\p", "|",
	"\\/", "/",
	"\\a", "\a",
	"\\b", "\b",
	"\\f", "\f",
	"\\n", "\n",
	"\\r", "\r",
	"\\t", "\t",
	"\\v", "\v",
	"\\\\", "\\",
)

func unescapeArg(s string) string {
	return unescapeReplacer.Replace(s)
}
