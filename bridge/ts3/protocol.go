package ts3

import (
	"fmt"
	"hash/crc32"
	"strings"
)

// Command is an outbound TS3Query-style raw command, e.g. "sendtextmessage
// targetmode=2 msg=hello". The wire escaping rules mirror the ones the real
// TS3Query protocol requires for special characters in argument values.
type Command struct {
	Name string
	Args []Arg
}

type Arg struct {
	Key   string
	Value string
}

// Sendtextmessage builds the chat command: targetmode 2 is channel, 3 is
// server, 1 is private.
func Sendtextmessage(targetMode int, message string) Command {
	return Command{
		Name: "sendtextmessage",
		Args: []Arg{
			{Key: "targetmode", Value: fmt.Sprintf("%d", targetMode)},
			{Key: "msg", Value: message},
		},
	}
}

// ClientUpdateDescription builds the `clientupdate client_description=...`
// command used by SetClientDescription.
func ClientUpdateDescription(description string) Command {
	return Command{
		Name: "clientupdate",
		Args: []Arg{{Key: "client_description", Value: description}},
	}
}

// ClientUpdateAvatar builds the `clientupdate client_flag_avatar=<hash>`
// command sent after a successful avatar upload.
func ClientUpdateAvatar(md5hex string) Command {
	return Command{
		Name: "clientupdate",
		Args: []Arg{{Key: "client_flag_avatar", Value: md5hex}},
	}
}

// Encode renders the command in TS3Query wire form: "name key=value
// key=value...", with reserved characters backslash-escaped the way the
// real protocol requires (space, slash, pipe, and control characters).
func (c Command) Encode() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(escapeArg(a.Value))
	}
	return b.String()
}

var escapeReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"/", "\\/",
	" ", "\\s",
	"|", "\\p",
	"\a", "\\a",
	"\b", "\\b",
	"\f", "\\f",
	"\n", "\\n",
	"\r", "\\r",
	"\t", "\\t",
	"\v", "\\v",
)

func escapeArg(s string) string {
	return escapeReplacer.Replace(s)
}

// Packet is a framed TS3 UDP datagram: a 4-byte CRC32 checksum of the
// payload followed by the payload itself, mirroring the real protocol's
// client-to-server packet framing.
type Packet struct {
	Payload []byte
}

// Frame produces the on-wire bytes for this packet.
func (p Packet) Frame() []byte {
	sum := crc32.ChecksumIEEE(p.Payload)
	out := make([]byte, 4+len(p.Payload))
	out[0] = byte(sum >> 24)
	out[1] = byte(sum >> 16)
	out[2] = byte(sum >> 8)
	out[3] = byte(sum)
	copy(out[4:], p.Payload)
	return out
}

// Unframe validates and extracts the payload from a received datagram.
func Unframe(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	want := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	payload := data[4:]
	got := crc32.ChecksumIEEE(payload)
	if got != want {
		return nil, fmt.Errorf("crc32 mismatch: want %08x got %08x", want, got)
	}
	return payload, nil
}

// AudioPacket builds a client-to-server Opus-Music audio frame, id=0.
func AudioPacket(opusData []byte) Packet {
	header := []byte{0x00} // id=0, codec implied OpusMusic by channel config
	payload := append(append([]byte{}, header...), opusData...)
	return Packet{Payload: payload}
}
