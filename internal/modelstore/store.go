package modelstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"remix/internal/bundle"
	"remix/internal/config"
	"remix/internal/fileutil"
	"remix/internal/logging"
)

// ErrNotStaged reports that a model has no staged bundle yet.
var ErrNotStaged = errors.New("model is not staged")

const lockRetryDelay = 250 * time.Millisecond

// Manifest is the YAML sidecar written beside each staged bundle.
type Manifest struct {
	Name       string    `yaml:"name"`
	Stems      []string  `yaml:"stems"`
	SampleRate int       `yaml:"sample_rate"`
	Window     int       `yaml:"window"`
	Hop        int       `yaml:"hop"`
	SHA256     string    `yaml:"sha256"`
	Size       int64     `yaml:"size"`
	SourceURL  string    `yaml:"source_url,omitempty"`
	FetchedAt  time.Time `yaml:"fetched_at"`
}

// Status merges one model's registry entry with its staging state.
type Status struct {
	Info     ModelInfo
	Staged   bool
	Verified bool
	Path     string
	Manifest *Manifest
}

// Store stages bundles under the configured models directory.
type Store struct {
	cfg    *config.Config
	models []ModelInfo
	client *http.Client
	logger *slog.Logger
}

// New builds a store over the builtin registry.
func New(cfg *config.Config, logger *slog.Logger) *Store {
	return NewWithModels(cfg, Builtin(), logger)
}

// NewWithModels builds a store over a custom registry. Mirrors and tests use
// it to stage bundles outside the builtin set.
func NewWithModels(cfg *config.Config, models []ModelInfo, logger *slog.Logger) *Store {
	// The fetch timeout bounds connection setup and waiting for headers, not
	// the body: a large bundle on a slow link legitimately streams for longer
	// than any request deadline. Mid-transfer cancellation comes from the
	// Fetch context.
	timeout := time.Duration(cfg.Models.FetchTimeout) * time.Second
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	return &Store{
		cfg:    cfg,
		models: models,
		client: &http.Client{Transport: transport},
		logger: logging.NewComponentLogger(logger, "modelstore"),
	}
}

// Fetch stages the named bundle, skipping the download when a staged copy
// still matches its manifest. It returns the staged bundle path.
func (s *Store) Fetch(ctx context.Context, name string) (string, error) {
	info, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.cfg.Paths.ModelsDir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}

	lock := flock.New(filepath.Join(s.cfg.Paths.ModelsDir, ".staging.lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("acquire staging lock: %w", err)
	}
	if !locked {
		return "", errors.New("staging lock is held by another process")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release staging lock", logging.Error(err))
		}
	}()

	dest := filepath.Join(s.cfg.Paths.ModelsDir, info.File)
	if s.stagedAndCurrent(info, dest) {
		s.logger.Info("model already staged", logging.String(logging.FieldModel, info.Name))
		return dest, nil
	}
	return s.download(ctx, info, dest)
}

// stagedAndCurrent reports whether dest already holds a bundle matching its
// manifest (and registry pin, when one exists).
func (s *Store) stagedAndCurrent(info ModelInfo, dest string) bool {
	if _, err := os.Stat(dest); err != nil {
		return false
	}
	manifest, err := s.loadManifest(info.Name)
	if err != nil {
		return false
	}
	if !s.cfg.Models.VerifyDownloads {
		return true
	}
	sum, err := fileutil.HashFile(dest)
	if err != nil {
		return false
	}
	if sum != manifest.SHA256 {
		s.logger.Warn("staged bundle does not match its manifest, refetching",
			logging.String(logging.FieldModel, info.Name))
		return false
	}
	if info.SHA256 != "" && sum != info.SHA256 {
		s.logger.Warn("staged bundle does not match its registry pin, refetching",
			logging.String(logging.FieldModel, info.Name))
		return false
	}
	return true
}

func (s *Store) download(ctx context.Context, info ModelInfo, dest string) (string, error) {
	url := s.downloadURL(info)
	started := time.Now()
	s.logger.Info("fetching model",
		logging.String(logging.FieldModel, info.Name),
		logging.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(s.cfg.Paths.ModelsDir, info.File+".download-*")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	writer := io.MultiWriter(tmp, hasher)
	if stderrIsTerminal() {
		bar := progressbar.DefaultBytes(resp.ContentLength, "fetching "+info.Name)
		defer bar.Close()
		writer = io.MultiWriter(tmp, hasher, bar)
	}

	written, err := io.Copy(writer, resp.Body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download %s: %w", info.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("flush staging file: %w", err)
	}

	observed := hex.EncodeToString(hasher.Sum(nil))
	if info.SHA256 != "" && observed != info.SHA256 {
		os.Remove(tmpPath)
		return "", fmt.Errorf("model %s: checksum %s does not match pin %s", info.Name, observed, info.SHA256)
	}

	b, err := bundle.Open(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("model %s: fetched payload is not a valid bundle: %w", info.Name, err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("stage bundle: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("stage bundle: %w", err)
	}
	if err := s.writeManifest(info.Name, b, observed, written, url); err != nil {
		return "", err
	}

	s.logger.Info("model staged",
		logging.String(logging.FieldModel, info.Name),
		logging.String("size", humanize.Bytes(uint64(written))),
		logging.String("sha256", observed),
		logging.Duration("elapsed", time.Since(started)))
	return dest, nil
}

// Verify recomputes the staged bundle's checksum and compares it to the
// manifest and, when present, the registry pin.
func (s *Store) Verify(name string) error {
	info, err := s.lookup(name)
	if err != nil {
		// Locally staged bundles outside the registry are fair game too.
		info = ModelInfo{Name: name, File: name + ".rmxb"}
	}
	path := filepath.Join(s.cfg.Paths.ModelsDir, info.File)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model %s: %w", name, ErrNotStaged)
	}
	manifest, err := s.loadManifest(info.Name)
	if err != nil {
		return fmt.Errorf("model %s has no readable manifest: %w", name, err)
	}
	sum, err := fileutil.HashFile(path)
	if err != nil {
		return err
	}
	if sum != manifest.SHA256 {
		return fmt.Errorf("model %s: checksum %s does not match manifest %s", name, sum, manifest.SHA256)
	}
	if info.SHA256 != "" && sum != info.SHA256 {
		return fmt.Errorf("model %s: checksum %s does not match registry pin %s", name, sum, info.SHA256)
	}
	return nil
}

// Path resolves the staged bundle for name, erroring with ErrNotStaged when
// it has not been fetched or converted yet.
func (s *Store) Path(name string) (string, error) {
	file := name + ".rmxb"
	if info, err := s.lookup(name); err == nil {
		file = info.File
	}
	path := filepath.Join(s.cfg.Paths.ModelsDir, file)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("model %s: %w", name, ErrNotStaged)
	}
	return path, nil
}

// List merges the registry with what is actually staged, including bundles
// converted locally that the registry does not know about.
func (s *Store) List() []Status {
	statuses := make([]Status, 0, len(s.models))
	seen := make(map[string]bool)
	for _, info := range s.models {
		statuses = append(statuses, s.status(info))
		seen[info.File] = true
	}

	entries, err := os.ReadDir(s.cfg.Paths.ModelsDir)
	if err != nil {
		return statuses
	}
	var local []Status
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || seen[name] || !strings.HasSuffix(name, ".rmxb") {
			continue
		}
		local = append(local, s.status(ModelInfo{
			Name:        strings.TrimSuffix(name, ".rmxb"),
			File:        name,
			Description: "locally staged bundle",
		}))
	}
	sort.Slice(local, func(i, j int) bool { return local[i].Info.Name < local[j].Info.Name })
	return append(statuses, local...)
}

// status resolves staging state without rehashing the bundle; `remix models
// verify` does the expensive check.
func (s *Store) status(info ModelInfo) Status {
	st := Status{Info: info}
	path := filepath.Join(s.cfg.Paths.ModelsDir, info.File)
	fi, err := os.Stat(path)
	if err != nil {
		return st
	}
	st.Staged = true
	st.Path = path
	if st.Info.Size == 0 {
		st.Info.Size = fi.Size()
	}
	manifest, err := s.loadManifest(info.Name)
	if err != nil {
		return st
	}
	st.Manifest = manifest
	st.Verified = info.SHA256 == "" || manifest.SHA256 == info.SHA256
	return st
}

// StageBundle writes an already-built bundle into the staging directory with
// a manifest, so locally converted checkpoints resolve like fetched ones.
func (s *Store) StageBundle(b *bundle.Bundle, half bool) (string, error) {
	if err := os.MkdirAll(s.cfg.Paths.ModelsDir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}
	dest := filepath.Join(s.cfg.Paths.ModelsDir, b.Name+".rmxb")
	if err := b.WriteFile(dest, half); err != nil {
		return "", err
	}
	sum, err := fileutil.HashFile(dest)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(dest)
	if err != nil {
		return "", err
	}
	if err := s.writeManifest(b.Name, b, sum, fi.Size(), ""); err != nil {
		return "", err
	}
	s.logger.Info("bundle staged",
		logging.String(logging.FieldModel, b.Name),
		logging.String(logging.FieldOutput, dest))
	return dest, nil
}

func (s *Store) writeManifest(name string, b *bundle.Bundle, sum string, size int64, sourceURL string) error {
	manifest := Manifest{
		Name:       name,
		Stems:      b.Stems,
		SampleRate: b.SampleRate,
		Window:     b.Window,
		Hop:        b.Hop,
		SHA256:     sum,
		Size:       size,
		SourceURL:  sourceURL,
		FetchedAt:  time.Now().UTC(),
	}
	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.manifestPath(name), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (s *Store) manifestPath(name string) string {
	return filepath.Join(s.cfg.Paths.ModelsDir, name+".yaml")
}

// LoadManifest reads the staged manifest for name.
func (s *Store) LoadManifest(name string) (*Manifest, error) {
	return s.loadManifest(name)
}

func (s *Store) loadManifest(name string) (*Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(name))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest for %s: %w", name, err)
	}
	return &manifest, nil
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
