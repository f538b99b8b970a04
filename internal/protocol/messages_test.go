package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessageHello(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"client_hello","session_id":" tok ","language":"EN"}`))
	require.NoError(t, err)

	hello, ok := msg.(ClientHello)
	require.True(t, ok, "message type = %T", msg)
	assert.Equal(t, "tok", hello.SessionID)
	assert.Equal(t, "en", hello.Language)
}

func TestParseClientMessageControl(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"client_control","action":"end"}`))
	require.NoError(t, err)
	assert.Equal(t, ClientControl{Type: TypeClientControl, Action: ActionEnd}, msg)

	_, err = ParseClientMessage([]byte(`{"type":"client_control","action":"approve_task_step"}`))
	assert.Error(t, err)
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = ParseClientMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestServerMessagesEncode(t *testing.T) {
	res := NewTurnResult(3)
	res.Intent = "check_balance"
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"turn_result"`)
	assert.Contains(t, string(raw), `"seq":3`)

	raw, err = json.Marshal(NewError(0, "invalid_input", "Empty audio payload", false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","code":"invalid_input","detail":"Empty audio payload","retryable":false}`, string(raw))
}
