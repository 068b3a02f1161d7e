package framer

import "testing"

func TestPack16Parse16RoundTrip(t *testing.T) {
	payload := []byte("hello, framer")
	packed, err := Pack16(payload)
	if err != nil {
		t.Fatalf("Pack16: %v", err)
	}

	got, consumed, err := Parse16(packed, 0)
	if err != nil {
		t.Fatalf("Parse16: %v", err)
	}
	if consumed != len(packed) {
		t.Fatalf("consumed = %d, want %d", consumed, len(packed))
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestParse16NeedsMoreData(t *testing.T) {
	packed, _ := Pack16([]byte("abcdef"))
	partial := packed[:len(packed)-1]

	payload, consumed, err := Parse16(partial, 0)
	if err != nil || consumed != 0 || payload != nil {
		t.Fatalf("Parse16(partial) = (%v, %d, %v), want (nil, 0, nil)", payload, consumed, err)
	}
}

func TestParse16ExceedsMaxPayload(t *testing.T) {
	packed, _ := Pack16([]byte("abcdef"))
	_, _, err := Parse16(packed, 3)
	if err != ErrTooLarge {
		t.Fatalf("Parse16 with tight max: err = %v, want ErrTooLarge", err)
	}
}

func TestPack32Parse32RoundTrip(t *testing.T) {
	payload := []byte("a longer payload for the 32-bit frame")
	packed, err := Pack32(payload)
	if err != nil {
		t.Fatalf("Pack32: %v", err)
	}
	got, consumed, err := Parse32(packed, 0)
	if err != nil {
		t.Fatalf("Parse32: %v", err)
	}
	if consumed != len(packed) || string(got) != string(payload) {
		t.Fatalf("Parse32 = (%q, %d), want (%q, %d)", got, consumed, payload, len(packed))
	}
}

func TestParseTextSplitsOnNewline(t *testing.T) {
	data := []byte("first line\nsecond")
	payload, consumed, err := ParseText(data, 0)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if consumed != len("first line\n") {
		t.Fatalf("consumed = %d, want %d", consumed, len("first line\n"))
	}
	want := append([]byte("first line"), 0)
	if string(payload) != string(want) {
		t.Fatalf("payload = %q, want %q", payload, want)
	}
}

func TestParseTextRewritesCarriageReturn(t *testing.T) {
	data := []byte("hello\r\n")
	payload, consumed, err := ParseText(data, 0)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if consumed != len(data) {
		t.Fatalf("consumed = %d, want %d", consumed, len(data))
	}
	want := []byte("hello\x00\x00")
	if string(payload) != string(want) {
		t.Fatalf("payload = %q, want %q", payload, want)
	}
}

func TestParseTextNeedsMoreData(t *testing.T) {
	payload, consumed, err := ParseText([]byte("no terminator yet"), 0)
	if err != nil || consumed != 0 || payload != nil {
		t.Fatalf("ParseText(no terminator) = (%v, %d, %v), want (nil, 0, nil)", payload, consumed, err)
	}
}
