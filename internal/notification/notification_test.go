package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-mobile/safe-push/pkg/address"
)

const validHash = "0x9a2a0ea1f0f8b1a0d5c4b3a29180706f5e4d3c2b1a0918273645546372819000"

func TestPayload_Classify(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    Kind
	}{
		{"confirmation by hash", Payload{SafeTxHash: validHash}, KindConfirmation},
		{"hash wins over type", Payload{SafeTxHash: validHash, Type: "INCOMING_ETHER"}, KindConfirmation},
		{"short hash falls back to type", Payload{SafeTxHash: "0x1234", Type: "NEW_CONFIRMATION"}, KindQueued},
		{"incoming ether", Payload{Type: "INCOMING_ETHER"}, KindIncoming},
		{"incoming token", Payload{Type: "INCOMING_TOKEN"}, KindIncoming},
		{"executed", Payload{Type: "EXECUTED_MULTISIG_TRANSACTION"}, KindQueued},
		{"confirmation request", Payload{Type: "CONFIRMATION_REQUEST"}, KindQueued},
		{"unknown", Payload{Type: "SAFE_CREATED"}, KindUnknown},
		{"empty", Payload{}, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.payload.Classify())
		})
	}
}

func TestPayload_SafeAddress(t *testing.T) {
	p := FromMap(map[string]any{"address": "0xa000000000000000000000000000000000000003", "type": 42})
	addr, ok := p.SafeAddress()
	require.True(t, ok)
	assert.Equal(t, address.MustParse("0xA000000000000000000000000000000000000003"), addr)
	assert.Empty(t, p.Type)

	_, ok = Payload{Address: "not-an-address"}.SafeAddress()
	assert.False(t, ok)

	_, ok = Payload{}.SafeAddress()
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	p, err := Parse([]byte(`{"address":"0xa000000000000000000000000000000000000002","safeTxHash":"` + validHash + `","type":"NEW_CONFIRMATION"}`))
	require.NoError(t, err)
	assert.Equal(t, KindConfirmation, p.Classify())

	hash, ok := p.TxHash()
	require.True(t, ok)
	assert.Equal(t, validHash, hash.Hex())

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestBus(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(1)
	b, cancelB := bus.Subscribe(0)
	defer cancelA()

	bus.Publish(Event{Type: EventClearDelivered})

	select {
	case ev := <-a:
		assert.Equal(t, EventClearDelivered, ev.Type)
	default:
		t.Fatal("buffered subscriber missed the event")
	}

	// the unbuffered subscriber was not reading and was skipped
	select {
	case <-b:
		t.Fatal("unexpected event")
	default:
	}

	cancelB()
	cancelB()
	_, open := <-b
	assert.False(t, open)

	bus.Publish(Event{Type: EventQueuedTransaction})
	assert.Equal(t, EventQueuedTransaction, (<-a).Type)
}
