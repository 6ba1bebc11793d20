package serve

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRequest(t *testing.T, line string, payload any) Request {
	t.Helper()
	var req Request
	require.NoError(t, json.Unmarshal([]byte(line), &req))
	if payload != nil {
		require.NoError(t, json.Unmarshal(req.Payload, payload))
	}
	return req
}

func TestRequest_Payloads(t *testing.T) {
	var scan ScanPayload
	req := decodeRequest(t, `{"type":"scan","payload":{"content":"key=AKIA","source":"stdin"}}`, &scan)
	assert.Equal(t, TypeScan, req.Type)
	assert.Equal(t, ScanPayload{Content: "key=AKIA", Source: "stdin"}, scan)

	var submit SubmitPayload
	decodeRequest(t, `{"type":"submit","payload":{"stream_id":"s","data":"AAEC/w=="}}`, &submit)
	assert.Equal(t, "s", submit.StreamID)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0xff}, submit.Data)

	var open OpenPayload
	decodeRequest(t, `{"type":"open","payload":{"stream_id":"s","mode":"overlapped","chunk_size":64,"window_step":16,"manual_analyze":true}}`, &open)
	assert.Equal(t, "overlapped", open.Mode)
	assert.Equal(t, 64, open.ChunkSize)
	assert.Equal(t, 16, open.WindowStep)
	assert.True(t, open.ManualAnalyze)

	var stats StreamPayload
	decodeRequest(t, `{"type":"stats","payload":{}}`, &stats)
	assert.Empty(t, stats.StreamID)
}

func TestResponse_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Response{Success: true, Type: "ready"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"type":"ready"}`, string(data))

	data, err = json.Marshal(Response{Type: "error", Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"type":"error","error":"boom"}`, string(data))
}
