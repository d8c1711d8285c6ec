package modelstore_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"remix/internal/config"
	"remix/internal/modelstore"
	"remix/internal/testsupport"
)

func bundleBytes(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testnet.rmxb")
	testsupport.WriteMaskBundle(t, path, "testnet", 8000, 64, 16, []string{"vocals", "other"})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read bundle fixture: %v", err)
	}
	return data
}

func stageServer(t *testing.T, payload []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(payload)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestStore(t *testing.T, cfg *config.Config, url, pin string) *modelstore.Store {
	t.Helper()
	models := []modelstore.ModelInfo{{
		Name:   "testnet",
		File:   "testnet.rmxb",
		URL:    url,
		SHA256: pin,
		Stems:  2,
	}}
	return modelstore.NewWithModels(cfg, models, nil)
}

func assertNoPartialDownloads(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".download-") {
			t.Fatalf("leftover partial download %s", entry.Name())
		}
	}
}

func TestFetchStagesBundleAndWritesManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	payload := bundleBytes(t)
	server, requests := stageServer(t, payload)
	store := newTestStore(t, cfg, server.URL+"/testnet.rmxb", "")

	path, err := store.Fetch(context.Background(), "testnet")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if want := filepath.Join(cfg.Paths.ModelsDir, "testnet.rmxb"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	staged, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged bundle: %v", err)
	}
	if len(staged) != len(payload) {
		t.Fatalf("staged %d bytes, want %d", len(staged), len(payload))
	}

	manifest, err := store.LoadManifest("testnet")
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	sum := sha256.Sum256(payload)
	if manifest.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("manifest sha = %s", manifest.SHA256)
	}
	if manifest.SampleRate != 8000 || manifest.Window != 64 || manifest.Hop != 16 {
		t.Fatalf("manifest geometry = %d/%d/%d", manifest.SampleRate, manifest.Window, manifest.Hop)
	}
	if len(manifest.Stems) != 2 || manifest.Stems[0] != "vocals" {
		t.Fatalf("manifest stems = %v", manifest.Stems)
	}
	if manifest.Size != int64(len(payload)) {
		t.Fatalf("manifest size = %d, want %d", manifest.Size, len(payload))
	}
	if manifest.SourceURL != server.URL+"/testnet.rmxb" {
		t.Fatalf("manifest source = %q", manifest.SourceURL)
	}
	if manifest.FetchedAt.IsZero() {
		t.Fatal("manifest fetch time is zero")
	}

	if err := store.Verify("testnet"); err != nil {
		t.Fatalf("Verify after fetch: %v", err)
	}

	// A second fetch must see the verified staged copy and skip the download.
	if _, err := store.Fetch(context.Background(), "testnet"); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("server saw %d requests, want 1", got)
	}

	resolved, err := store.Path("testnet")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if resolved != path {
		t.Fatalf("Path = %q, want %q", resolved, path)
	}
	assertNoPartialDownloads(t, cfg.Paths.ModelsDir)
}

func TestFetchRefetchesWhenStagedCopyDrifts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	payload := bundleBytes(t)
	server, requests := stageServer(t, payload)
	store := newTestStore(t, cfg, server.URL+"/testnet.rmxb", "")

	path, err := store.Fetch(context.Background(), "testnet")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Corrupt the staged copy behind the store's back.
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open staged bundle: %v", err)
	}
	if _, err := file.Write([]byte{0xFF}); err != nil {
		t.Fatalf("corrupt staged bundle: %v", err)
	}
	file.Close()
	if err := store.Verify("testnet"); err == nil {
		t.Fatal("Verify accepted a corrupted bundle")
	}

	if _, err := store.Fetch(context.Background(), "testnet"); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("server saw %d requests, want 2", got)
	}
	if err := store.Verify("testnet"); err != nil {
		t.Fatalf("Verify after refetch: %v", err)
	}
}

func TestFetchRejectsPinMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server, _ := stageServer(t, bundleBytes(t))
	store := newTestStore(t, cfg, server.URL+"/testnet.rmxb", strings.Repeat("0", 64))

	_, err := store.Fetch(context.Background(), "testnet")
	if err == nil {
		t.Fatal("expected pin mismatch error")
	}
	if !strings.Contains(err.Error(), "does not match pin") {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ModelsDir, "testnet.rmxb")); err == nil {
		t.Fatal("rejected payload was staged anyway")
	}
	assertNoPartialDownloads(t, cfg.Paths.ModelsDir)
}

func TestFetchRejectsInvalidPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server, _ := stageServer(t, []byte("definitely not a bundle"))
	store := newTestStore(t, cfg, server.URL+"/testnet.rmxb", "")

	_, err := store.Fetch(context.Background(), "testnet")
	if err == nil {
		t.Fatal("expected invalid payload error")
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.ModelsDir, "testnet.rmxb")); statErr == nil {
		t.Fatal("invalid payload was staged anyway")
	}
	assertNoPartialDownloads(t, cfg.Paths.ModelsDir)
}

func TestFetchSurvivesSlowBodyStream(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Models.FetchTimeout = 1
	payload := bundleBytes(t)

	// Headers arrive promptly, the body dribbles in past the fetch timeout.
	// Only connection setup and header wait are bounded by it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		half := len(payload) / 2
		w.Write(payload[:half])
		w.(http.Flusher).Flush()
		time.Sleep(1500 * time.Millisecond)
		w.Write(payload[half:])
	}))
	t.Cleanup(server.Close)
	store := newTestStore(t, cfg, server.URL+"/testnet.rmxb", "")

	path, err := store.Fetch(context.Background(), "testnet")
	if err != nil {
		t.Fatalf("Fetch over slow stream: %v", err)
	}
	staged, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged bundle: %v", err)
	}
	if len(staged) != len(payload) {
		t.Fatalf("staged %d bytes, want %d", len(staged), len(payload))
	}
}

func TestFetchSurfacesHTTPStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)
	store := newTestStore(t, cfg, server.URL+"/testnet.rmxb", "")

	_, err := store.Fetch(context.Background(), "testnet")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want a 404 status error", err)
	}
}

func TestFetchRejectsUnknownModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := modelstore.New(cfg, nil)

	_, err := store.Fetch(context.Background(), "nonsense")
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Fatalf("err = %v, want unknown model error", err)
	}
	if !strings.Contains(err.Error(), "remixnet_6s") {
		t.Fatalf("error should list known models: %v", err)
	}
}

func TestPathReportsNotStaged(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := modelstore.New(cfg, nil)

	_, err := store.Path("remixnet_6s")
	if !errors.Is(err, modelstore.ErrNotStaged) {
		t.Fatalf("err = %v, want ErrNotStaged", err)
	}
}

func TestListMergesRegistryAndLocalBundles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	payload := bundleBytes(t)
	server, _ := stageServer(t, payload)
	models := []modelstore.ModelInfo{
		{Name: "testnet", File: "testnet.rmxb", URL: server.URL + "/testnet.rmxb", Stems: 2},
		{Name: "othernet", File: "othernet.rmxb", URL: server.URL + "/othernet.rmxb", Stems: 4},
	}
	store := modelstore.NewWithModels(cfg, models, nil)

	if _, err := store.Fetch(context.Background(), "testnet"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	testsupport.WriteMaskBundle(t, filepath.Join(cfg.Paths.ModelsDir, "custom.rmxb"),
		"custom", 8000, 64, 16, []string{"vocals", "other"})

	statuses := store.List()
	if len(statuses) != 3 {
		t.Fatalf("List = %d entries, want 3", len(statuses))
	}
	if statuses[0].Info.Name != "testnet" || !statuses[0].Staged || !statuses[0].Verified {
		t.Fatalf("testnet status = %+v", statuses[0])
	}
	if statuses[0].Manifest == nil {
		t.Fatal("testnet status lost its manifest")
	}
	if statuses[1].Info.Name != "othernet" || statuses[1].Staged {
		t.Fatalf("othernet status = %+v", statuses[1])
	}
	if statuses[2].Info.Name != "custom" || !statuses[2].Staged {
		t.Fatalf("custom status = %+v", statuses[2])
	}
	if statuses[2].Verified {
		t.Fatal("custom bundle without manifest must not report verified")
	}
	if statuses[2].Info.Size == 0 {
		t.Fatal("local bundle size not filled from disk")
	}
}

func TestStageBundleResolvesLikeFetched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := modelstore.New(cfg, nil)

	b := testsupport.NewMaskBundle("localnet", 8000, 64, 16, []string{"vocals", "other"})
	path, err := store.StageBundle(b, false)
	if err != nil {
		t.Fatalf("StageBundle: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("staged bundle missing: %v", err)
	}
	if err := store.Verify("localnet"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	resolved, err := store.Path("localnet")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if resolved != path {
		t.Fatalf("Path = %q, want %q", resolved, path)
	}
}
