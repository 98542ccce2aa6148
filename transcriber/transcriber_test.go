package transcriber

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"scribe/config"
)

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(config.SpeechRecognition{Provider: "deepgram"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("got %v, want ErrUnknownProvider", err)
	}
}

func TestUnavailableReportsLoadFailure(t *testing.T) {
	cause := fmt.Errorf("%w: model dir missing", ErrModelLoad)
	tr := NewUnavailable(cause)

	text, hasText, err := tr.Recognize(context.Background(), []byte{1, 2})
	if !errors.Is(err, ErrModelLoad) {
		t.Fatalf("got %v, want the load failure surfaced", err)
	}
	if hasText || text != "" {
		t.Errorf("degraded backend yielded text %q", text)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestParseVoskText(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"normal", `{"text": "hello world"}`, "hello world"},
		{"empty", `{"text": ""}`, ""},
		{"padded", `{"text": "  hello  "}`, "hello"},
		{"missing field", `{"partial": "hel"}`, ""},
		{"malformed falls back to raw", `not json at all`, "not json at all"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseVoskText(tc.payload); got != tc.want {
				t.Errorf("parseVoskText(%q) = %q, want %q", tc.payload, got, tc.want)
			}
		})
	}
}

func TestJoinUtterances(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{nil, ""},
		{[]string{""}, ""},
		{[]string{"hello"}, "hello"},
		{[]string{"hello", "", "world"}, "hello world"},
		{[]string{"", "", ""}, ""},
	}
	for _, tc := range cases {
		if got := joinUtterances(tc.parts); got != tc.want {
			t.Errorf("joinUtterances(%v) = %q, want %q", tc.parts, got, tc.want)
		}
	}
}

func TestPCMToFloat32(t *testing.T) {
	// 0x7FFF -> just under 1.0, 0x8000 -> -1.0, zero -> 0.
	pcm := []byte{0xFF, 0x7F, 0x00, 0x80, 0x00, 0x00}
	samples := pcmToFloat32(pcm)
	if len(samples) != 3 {
		t.Fatalf("len = %d, want 3", len(samples))
	}
	if math.Abs(float64(samples[0])-32767.0/32768.0) > 1e-6 {
		t.Errorf("samples[0] = %v", samples[0])
	}
	if samples[1] != -1.0 {
		t.Errorf("samples[1] = %v, want -1", samples[1])
	}
	if samples[2] != 0 {
		t.Errorf("samples[2] = %v, want 0", samples[2])
	}

	// Trailing odd byte ignored.
	if got := pcmToFloat32([]byte{0x00, 0x00, 0x42}); len(got) != 1 {
		t.Errorf("odd input: len = %d, want 1", len(got))
	}
}

func TestFakeCancellationYieldsNoText(t *testing.T) {
	f := NewFake("hello", nil)
	f.Delay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	text, hasText, err := f.Recognize(ctx, []byte{0, 0})
	if err != nil {
		t.Fatalf("cancellation returned error: %v", err)
	}
	if hasText || text != "" {
		t.Errorf("cancellation yielded text %q", text)
	}
}

func TestFakeRecordsCalls(t *testing.T) {
	f := NewFake("ok", nil)
	pcm := []byte{1, 2, 3, 4}
	text, hasText, err := f.Recognize(context.Background(), pcm)
	if err != nil || !hasText || text != "ok" {
		t.Fatalf("Recognize = %q/%v/%v", text, hasText, err)
	}
	calls := f.Calls()
	if len(calls) != 1 || len(calls[0]) != 4 {
		t.Fatalf("calls = %v", calls)
	}
}
