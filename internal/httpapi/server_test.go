package httpapi_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"remix/internal/audio"
	"remix/internal/httpapi"
	"remix/internal/logging"
	"remix/internal/testsupport"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Decompose.Window = 256
	cfg.Decompose.Hop = 64
	server := httpapi.NewServer(cfg, logging.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func uploadBody(t *testing.T, components string) (*bytes.Buffer, string) {
	t.Helper()
	clip := testsupport.SineBuffer(8000, 4096, 440)
	var wav bytes.Buffer
	if err := audio.EncodeWAV(&wav, clip); err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", "tone.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(wav.Bytes()); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if components != "" {
		if err := writer.WriteField("num_components", components); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func processUpload(t *testing.T, ts *httptest.Server, components string) map[string]any {
	t.Helper()
	body, contentType := uploadBody(t, components)
	resp, err := http.Post(ts.URL+"/api/process", contentType, body)
	if err != nil {
		t.Fatalf("POST /api/process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process status = %d, want 200", resp.StatusCode)
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestProcessReturnsComponents(t *testing.T) {
	ts := newTestServer(t)
	decoded := processUpload(t, ts, "2")

	if decoded["session_id"] == "" {
		t.Fatal("expected a session_id")
	}
	if got := decoded["num_components"].(float64); got != 2 {
		t.Fatalf("num_components = %v, want 2", got)
	}
	components := decoded["components"].([]any)
	if len(components) != 2 {
		t.Fatalf("components = %d, want 2", len(components))
	}
	for i, comp := range components {
		raw, err := base64.StdEncoding.DecodeString(comp.(string))
		if err != nil {
			t.Fatalf("component %d is not base64: %v", i, err)
		}
		clip, err := audio.DecodeWAV(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("component %d is not a WAV: %v", i, err)
		}
		if clip.SampleRate != 8000 {
			t.Fatalf("component %d sample rate = %d, want 8000", i, clip.SampleRate)
		}
	}
	ratios := decoded["variance_ratios"].([]any)
	var ratioSum float64
	for i, r := range ratios {
		if i > 0 && r.(float64) > ratios[i-1].(float64) {
			t.Fatalf("variance ratios not descending: %v", ratios)
		}
		ratioSum += r.(float64)
	}
	if ratioSum > 100+1e-6 {
		t.Fatalf("variance percentages sum to %v", ratioSum)
	}
	// A single dominant tone must explain well over one percent.
	if ratios[0].(float64) < 1 {
		t.Fatalf("dominant variance = %v%%, expected percent scale", ratios[0])
	}
}

func TestProcessRejectsGarbage(t *testing.T) {
	ts := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("audio", "noise.bin")
	part.Write([]byte("this is not audio data at all"))
	writer.Close()

	resp, err := http.Post(ts.URL+"/api/process", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("POST /api/process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestMixRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	decoded := processUpload(t, ts, "2")
	sessionID := decoded["session_id"].(string)

	mixBody := strings.NewReader(`{"session_id":"` + sessionID + `","volumes":[1,0.5]}`)
	resp, err := http.Post(ts.URL+"/api/mix", "application/json", mixBody)
	if err != nil {
		t.Fatalf("POST /api/mix: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mix status = %d, want 200", resp.StatusCode)
	}
	var mixed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&mixed); err != nil {
		t.Fatalf("decode mix response: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(mixed["audio"].(string))
	if err != nil {
		t.Fatalf("mix audio is not base64: %v", err)
	}
	if _, err := audio.DecodeWAV(bytes.NewReader(raw)); err != nil {
		t.Fatalf("mix audio is not a WAV: %v", err)
	}
}

func TestMixUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	body := strings.NewReader(`{"session_id":"no-such-session","volumes":[1]}`)
	resp, err := http.Post(ts.URL+"/api/mix", "application/json", body)
	if err != nil {
		t.Fatalf("POST /api/mix: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var decoded map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if decoded["error"] == "" {
		t.Fatal("expected an error message body")
	}
}

func TestMixVolumeMismatch(t *testing.T) {
	ts := newTestServer(t)
	decoded := processUpload(t, ts, "2")
	sessionID := decoded["session_id"].(string)

	body := strings.NewReader(`{"session_id":"` + sessionID + `","volumes":[1]}`)
	resp, err := http.Post(ts.URL+"/api/mix", "application/json", body)
	if err != nil {
		t.Fatalf("POST /api/mix: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
