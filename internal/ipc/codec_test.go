package ipc

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	frame, err := enc.Encode(OpFrame, map[string]any{"cmd": "SET_ACTIVITY", "nonce": "abc"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder()
	dec.Feed(frame)

	pkt, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pkt == nil {
		t.Fatal("expected a packet, got nil")
	}
	if pkt.Op != OpFrame {
		t.Fatalf("expected OpFrame, got %v", pkt.Op)
	}

	var body map[string]any
	if err := json.Unmarshal(pkt.Data, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["cmd"] != "SET_ACTIVITY" {
		t.Fatalf("unexpected cmd field: %v", body["cmd"])
	}
}

func TestDecodeIncrementalFeed(t *testing.T) {
	enc := NewEncoder()
	frame, err := enc.Encode(OpPing, map[string]any{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder()

	// Feed one byte at a time; Decode must return (nil, nil) until the
	// full frame has arrived.
	for i := 0; i < len(frame)-1; i++ {
		dec.Feed(frame[i : i+1])
		pkt, err := dec.Decode()
		if err != nil {
			t.Fatalf("unexpected error mid-stream at byte %d: %v", i, err)
		}
		if pkt != nil {
			t.Fatalf("unexpected packet before frame complete, at byte %d", i)
		}
	}

	dec.Feed(frame[len(frame)-1:])
	pkt, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode after final byte: %v", err)
	}
	if pkt == nil || pkt.Op != OpPing {
		t.Fatalf("expected completed OpPing packet, got %v", pkt)
	}
}

func TestDecodeMultipleFramesInOneBuffer(t *testing.T) {
	enc := NewEncoder()
	a, _ := enc.Encode(OpFrame, map[string]any{"n": 1})
	b, _ := enc.Encode(OpFrame, map[string]any{"n": 2})

	dec := NewDecoder()
	dec.Feed(append(append([]byte{}, a...), b...))

	first, err := dec.Decode()
	if err != nil || first == nil {
		t.Fatalf("expected first packet, err=%v", err)
	}
	second, err := dec.Decode()
	if err != nil || second == nil {
		t.Fatalf("expected second packet, err=%v", err)
	}

	third, err := dec.Decode()
	if err != nil {
		t.Fatalf("unexpected error on drained buffer: %v", err)
	}
	if third != nil {
		t.Fatal("expected nil packet once buffer is drained")
	}
}

func TestDecodeRejectsUnknownOp(t *testing.T) {
	enc := NewEncoder()
	frame, _ := enc.Encode(OpFrame, map[string]any{})
	// Corrupt the op code to something out of range.
	frame[0] = 99

	dec := NewDecoder()
	dec.Feed(frame)

	_, err := dec.Decode()
	if err == nil {
		t.Fatal("expected protocol error for unknown op code")
	}
	var protoErr *ProtocolError
	if !asProtocolError(err, &protoErr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	frame := make([]byte, headerSize+4)
	// op = Frame, length = 4
	frame[0] = byte(OpFrame)
	frame[4] = 4
	copy(frame[headerSize:], []byte("nope"))

	dec := NewDecoder()
	dec.Feed(frame)

	_, err := dec.Decode()
	if err == nil {
		t.Fatal("expected protocol error for invalid JSON body")
	}
}

func asProtocolError(err error, target **ProtocolError) bool {
	pe, ok := err.(*ProtocolError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
