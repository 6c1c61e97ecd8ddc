package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestTTSClient(t *testing.T, baseURL string) *TTSClient {
	t.Helper()
	c, err := NewTTSClient(TTSConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		VoiceID: "voice-123",
	}, nil)
	if err != nil {
		t.Fatalf("NewTTSClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestTTSSynthesizeSuccess(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01}
	var gotPath, gotAuth string
	var gotReq providerTTSRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	c := newTestTTSClient(t, srv.URL)

	got, err := c.Synthesize(context.Background(), "Hello friend!")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatalf("audio bytes not returned verbatim")
	}

	if gotPath != "/v1/tts" {
		t.Fatalf("posted to %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReq.ReferenceID != "voice-123" {
		t.Fatalf("reference_id = %q", gotReq.ReferenceID)
	}
	if gotReq.Format != "mp3" || gotReq.Latency != "normal" {
		t.Fatalf("unexpected encoding parameters: %+v", gotReq)
	}
}

func TestTTSSynthesizeRateLimited(t *testing.T) {
	body := `{"error":"out of credits"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestTTSClient(t, srv.URL)
	_, err := c.Synthesize(context.Background(), "hi")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !statusErr.IsRateLimited() {
		t.Fatalf("429 should classify as rate limited")
	}
	if string(statusErr.Body) != body {
		t.Fatalf("body not relayed verbatim: %s", statusErr.Body)
	}
}

func TestTTSSynthesizeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestTTSClient(t, srv.URL)
	if _, err := c.Synthesize(context.Background(), "hi"); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestTTSSynthesizeRejectsEmptyText(t *testing.T) {
	c := newTestTTSClient(t, "http://127.0.0.1:0")
	if _, err := c.Synthesize(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestNewTTSClientRequiresConfig(t *testing.T) {
	if _, err := NewTTSClient(TTSConfig{BaseURL: "https://api.example.com", APIKey: "k"}, nil); err == nil {
		t.Fatalf("expected error for missing voice ID")
	}
	c, err := NewTTSClient(TTSConfig{BaseURL: "https://api.example.com", VoiceID: "v"}, nil)
	if err != nil {
		t.Fatalf("client without API key should still construct: %v", err)
	}
	if _, err := c.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}
