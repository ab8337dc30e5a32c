package eth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe-mobile/safe-push/pkg/address"
)

const encodedVersion = "0x" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"0000000000000000000000000000000000000000000000000000000000000005" +
	"312e332e30000000000000000000000000000000000000000000000000000000"

var (
	safeAddr = address.MustParse("0x1230b3d59858296a31053c1b8562ecf89a2f888b")
	eoaAddr  = address.MustParse("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newRPCServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "eth_chainId":
			result = "0x64"
		case "eth_getCode":
			var addr string
			require.NoError(t, json.Unmarshal(req.Params[0], &addr))
			if strings.EqualFold(addr, safeAddr.Hex()) {
				result = "0x6080"
			} else {
				result = "0x"
			}
		case "eth_call":
			var call struct {
				Input string `json:"input"`
				Data  string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(req.Params[0], &call))
			input := call.Input
			if input == "" {
				input = call.Data
			}
			assert.Equal(t, "0xffa1ad74", input)
			result = encodedVersion
		default:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	assert.ErrorContains(t, err, "RPC URL is required")
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, newRPCServer(t).URL)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, int64(100), client.ChainID().Int64())

	isContract, err := client.IsContract(ctx, safeAddr)
	require.NoError(t, err)
	assert.True(t, isContract)

	isContract, err = client.IsContract(ctx, eoaAddr)
	require.NoError(t, err)
	assert.False(t, isContract)

	version, err := client.SafeVersion(ctx, safeAddr)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", version)
}
