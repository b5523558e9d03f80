package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcBroadcaster submits raw transactions over JSON-RPC.
type rpcBroadcaster struct {
	endpoint string
	client   *http.Client
}

func newRPCBroadcaster(endpoint string) *rpcBroadcaster {
	return &rpcBroadcaster{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int      `json:"id"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *rpcBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "heaven_sendRawTransaction",
		Params:  []string{"0x" + hex.EncodeToString(rawTx)},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode rpc response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.Result == "" {
		return "", fmt.Errorf("rpc response carries no transaction hash")
	}
	return parsed.Result, nil
}
