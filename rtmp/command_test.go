package rtmp

import "testing"

func TestCommandConnectRoundTrip(t *testing.T) {
	cmd := NewConnectCommand(1, "live", "FMLE/3.0 (compatible; Lavf 60.10.100)", "rtmp://host/live")
	payload := EncodeCommand(cmd)

	decoded, err := DecodeCommand(payload)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if decoded.Name != "connect" {
		t.Fatalf("expected name 'connect', got %q", decoded.Name)
	}
	if decoded.TransactionID != 1 {
		t.Fatalf("expected transaction id 1, got %v", decoded.TransactionID)
	}
	obj := decoded.Args[0]
	if obj.Property("app").Str() != "live" {
		t.Fatalf("expected app 'live', got %q", obj.Property("app").Str())
	}
	if obj.Property("type").Str() != "nonprivate" {
		t.Fatalf("expected type 'nonprivate', got %q", obj.Property("type").Str())
	}
}

func TestCommandOnFCPublishHasNoTransactionID(t *testing.T) {
	payload := EncodeCommand(NewOnFCPublishCommand())

	decoded, err := DecodeCommand(payload)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if decoded.Name != "onFCPublish" {
		t.Fatalf("expected name 'onFCPublish', got %q", decoded.Name)
	}
	if decoded.TransactionID != 0 {
		t.Fatalf("expected zero transaction id, got %v", decoded.TransactionID)
	}
}

func TestCommandOnFCPublishWireHasNoNumberAfterName(t *testing.T) {
	// Confirm the raw bytes really do skip the transaction-id number: the
	// byte right after the command-name string must be another string-typed
	// AMF0 value (or whatever args follow), never 0x00 (Number marker)
	// immediately followed by 8 zero bytes that would be a bogus txn id.
	payload := EncodeAMF0(StringValue(onFCPublishName))
	if len(payload) == 0 {
		t.Fatalf("expected non-empty payload")
	}
	decoded, err := DecodeCommand(payload)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if decoded.Name != onFCPublishName || len(decoded.Args) != 0 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestCommandErrorDetection(t *testing.T) {
	errCmd := &Command{Name: "_error", Args: []*Value{NullValue()}}
	if !errCmd.IsErrorStatus() {
		t.Fatalf("expected _error to be an error status")
	}

	info := NewObject()
	info.Set("level", StringValue("error"))
	info.Set("code", StringValue("NetStream.Publish.BadName"))
	onStatusErr := &Command{Name: "onStatus", Args: []*Value{NullValue(), ObjectValue(info)}}
	if !onStatusErr.IsErrorStatus() {
		t.Fatalf("expected onStatus with level=error to be an error status")
	}

	if NewPublishStartStatusCommand().IsErrorStatus() {
		t.Fatalf("did not expect NetStream.Publish.Start to be an error status")
	}
}

func TestCommandDecodeInconsistentName(t *testing.T) {
	payload := EncodeAMF0(NumberValue(1))
	_, err := DecodeCommand(payload)
	if !IsKind(err, KindInvalidData) {
		t.Fatalf("expected KindInvalidData, got %v", err)
	}
}

func TestCommandCreateStreamResult(t *testing.T) {
	cmd := NewCreateStreamResultCommand(4, 7)
	payload := EncodeCommand(cmd)
	decoded, err := DecodeCommand(payload)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if decoded.TransactionID != 4 {
		t.Fatalf("expected transaction id 4, got %v", decoded.TransactionID)
	}
	if decoded.Args[1].Number() != 7 {
		t.Fatalf("expected stream id 7, got %v", decoded.Args[1].Number())
	}
}
