package schema

import (
	"fmt"

	"github.com/goccy/go-json"
)

// wireEnvelope is the self-describing JSON form used for tests and replay.
// The binary/native form of each venue stays adapter-private.
type wireEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeMarketEvent serialises an event into the replay envelope.
func EncodeMarketEvent(ev MarketEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode market event payload: %w", err)
	}
	return json.Marshal(wireEnvelope{Type: ev.Kind.String(), Payload: payload})
}

// DecodeMarketEvent parses a replay envelope back into an event.
func DecodeMarketEvent(data []byte) (MarketEvent, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return MarketEvent{}, fmt.Errorf("decode market event envelope: %w", err)
	}
	kind, ok := marketEventKindByName(env.Type)
	if !ok {
		return MarketEvent{}, fmt.Errorf("decode market event: unknown type %q", env.Type)
	}
	var ev MarketEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return MarketEvent{}, fmt.Errorf("decode market event payload: %w", err)
	}
	ev.Kind = kind
	return ev, nil
}

// EncodeExecutionResponse serialises a response into the replay envelope.
func EncodeExecutionResponse(resp ExecutionResponse) ([]byte, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode execution response payload: %w", err)
	}
	return json.Marshal(wireEnvelope{Type: resp.Kind.String(), Payload: payload})
}

// DecodeExecutionResponse parses a replay envelope back into a response.
func DecodeExecutionResponse(data []byte) (ExecutionResponse, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ExecutionResponse{}, fmt.Errorf("decode execution response envelope: %w", err)
	}
	kind, ok := execResponseKindByName(env.Type)
	if !ok {
		return ExecutionResponse{}, fmt.Errorf("decode execution response: unknown type %q", env.Type)
	}
	var resp ExecutionResponse
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return ExecutionResponse{}, fmt.Errorf("decode execution response payload: %w", err)
	}
	resp.Kind = kind
	return resp, nil
}

func marketEventKindByName(name string) (MarketEventKind, bool) {
	for i, n := range marketEventNames {
		if n == name {
			return MarketEventKind(i), true
		}
	}
	return EvString, false
}

func execResponseKindByName(name string) (ExecResponseKind, bool) {
	for i, n := range execResponseNames {
		if n == name {
			return ExecResponseKind(i), true
		}
	}
	return RespNoop, false
}
