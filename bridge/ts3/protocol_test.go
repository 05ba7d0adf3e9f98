package ts3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEncodeEscapesReservedCharacters(t *testing.T) {
	cmd := Sendtextmessage(2, "hello world | pipe")
	assert.Equal(t, `sendtextmessage targetmode=2 msg=hello\sworld\s\p\spipe`, cmd.Encode())
}

func TestPacketFrameAndUnframeRoundTrip(t *testing.T) {
	p := Packet{Payload: []byte("sendtextmessage targetmode=2 msg=hi")}
	framed := p.Frame()

	got, err := Unframe(framed)
	require.NoError(t, err)
	assert.Equal(t, p.Payload, got)
}

func TestUnframeRejectsCorruptedChecksum(t *testing.T) {
	p := Packet{Payload: []byte("test")}
	framed := p.Frame()
	framed[len(framed)-1] ^= 0xFF

	_, err := Unframe(framed)
	assert.Error(t, err)
}

func TestUnframeRejectsShortPacket(t *testing.T) {
	_, err := Unframe([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestAudioPacketPrependsIDHeader(t *testing.T) {
	p := AudioPacket([]byte{0xAA, 0xBB})
	assert.Equal(t, []byte{0x00, 0xAA, 0xBB}, p.Payload)
}

func TestDecodeEventParsesTextMessage(t *testing.T) {
	raw := []byte(`notifytextmessage targetmode=2 invokeruid=abc123 invokername=Bob\sSmith msg=hello\sworld`)

	ev, err := decodeEvent(raw)
	require.NoError(t, err)

	msg, ok := ev.(messageEvent)
	require.True(t, ok)
	assert.Equal(t, 2, msg.targetMode)
	assert.Equal(t, "abc123", msg.invokerUniqueID)
	assert.Equal(t, "Bob Smith", msg.invokerName)
	assert.Equal(t, "hello world", msg.text)
}

func TestDecodeEventParsesStatusChange(t *testing.T) {
	ev, err := decodeEvent([]byte("notifystatuschange cansend=0"))
	require.NoError(t, err)

	cs, ok := ev.(canSendEvent)
	require.True(t, ok)
	assert.False(t, cs.canSend)
}

func TestDecodeEventIgnoresUnknownNotification(t *testing.T) {
	ev, err := decodeEvent([]byte("notifysomethingirrelevant foo=bar"))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecodeEventParsesFileUploadReply(t *testing.T) {
	ev, err := decodeEvent([]byte("notifyftinitupload clientftfid=1 ftkey=abcxyz ip=127.0.0.1 port=30033 status=0"))
	require.NoError(t, err)

	up, ok := ev.(fileUploadEvent)
	require.True(t, ok)
	assert.Equal(t, "1", up.handle)
	assert.Equal(t, "abcxyz", up.transferKey)
	assert.Equal(t, 30033, up.port)
}

func TestDecodeEventParsesFileUploadFailure(t *testing.T) {
	ev, err := decodeEvent([]byte(`notifyftinitupload clientftfid=1 status=1 msgfortransfer=permission\sdenied`))
	require.NoError(t, err)

	fail, ok := ev.(filetransferFailedEvent)
	require.True(t, ok)
	assert.Equal(t, "1", fail.handle)
	assert.ErrorContains(t, fail.err, "permission denied")
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	d := backoffInitial
	for i := 0; i < 10; i++ {
		d = nextBackoff(d, nil)
	}
	assert.Equal(t, backoffCap, d)
}

func TestNextBackoffEnforcesCloneFloor(t *testing.T) {
	d := nextBackoff(backoffInitial, assertErr("ClientTooManyClonesConnected"))
	assert.GreaterOrEqual(t, d, backoffCloneFloor)
}

type strErr string

func (e strErr) Error() string { return string(e) }

func assertErr(msg string) error { return strErr(msg) }
