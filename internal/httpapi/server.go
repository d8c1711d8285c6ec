package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"remix/internal/audio"
	"remix/internal/config"
	"remix/internal/logging"
	"remix/internal/pca"
)

const sweepInterval = time.Minute

// Server hosts the session API over loopback HTTP.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *sessionStore
	maxBody  int64
}

// NewServer builds a server from application config.
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	ttl := time.Duration(cfg.Serve.SessionTTLMinutes) * time.Minute
	return &Server{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "httpapi"),
		sessions: newSessionStore(ttl),
		maxBody:  int64(cfg.Serve.MaxBodyMB) << 20,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Get("/healthz", s.handleHealth)
	r.Post("/api/process", s.handleProcess)
	r.Post("/api/mix", s.handleMix)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully. Expired
// sessions are swept in the background while the server runs.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Serve.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sweepLoop(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("session server listening", logging.String("bind", s.cfg.Serve.Bind))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown session server: %w", err)
		}
		<-errCh
		s.logger.Info("session server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("session server: %w", err)
	}
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.sweep(); removed > 0 {
				s.logger.Debug("expired sessions removed",
					logging.Int("removed", removed),
					logging.Int("live", s.sessions.Len()))
			}
		}
	}
}

// corsMiddleware answers preflight requests from the desktop shell's
// webview. The server only binds loopback, so permissive origins are fine.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// processResponse is the body returned by /api/process. Variance ratios are
// percentages of total spectral variance.
type processResponse struct {
	SessionID      string    `json:"session_id"`
	NumComponents  int       `json:"num_components"`
	Eigenvalues    []float64 `json:"eigenvalues"`
	VarianceRatios []float64 `json:"variance_ratios"`
	SampleRate     int       `json:"sample_rate"`
	Components     []string  `json:"components"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing audio file field"))
		return
	}
	defer file.Close()

	components := s.cfg.Decompose.Components
	if raw := r.FormValue("num_components"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &components); err != nil || components < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid num_components %q", raw))
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	clip, format, err := audio.DecodeBytes(data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("decode audio: %w", err))
		return
	}
	s.logger.Info("processing upload",
		logging.String("file", header.Filename),
		logging.String("format", string(format)),
		logging.Int("components", components),
		logging.Int("sample_rate", clip.SampleRate))

	result, err := pca.Decompose(clip.Mono(), clip.SampleRate, components,
		s.cfg.Decompose.Window, s.cfg.Decompose.Hop)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	encoded := make([]string, len(result.Components))
	for i, comp := range result.Components {
		b64, err := wavBase64(comp, result.SampleRate)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		encoded[i] = b64
	}

	id := s.sessions.Add(result)
	s.logger.Info("session created",
		logging.String(logging.FieldSession, id),
		logging.Int("components", len(result.Components)))
	writeJSON(w, http.StatusOK, processResponse{
		SessionID:      id,
		NumComponents:  len(result.Components),
		Eigenvalues:    result.Eigenvalues,
		VarianceRatios: result.VariancePercents(),
		SampleRate:     result.SampleRate,
		Components:     encoded,
	})
}

// mixRequest is the body accepted by /api/mix.
type mixRequest struct {
	SessionID string    `json:"session_id"`
	Volumes   []float64 `json:"volumes"`
}

// mixResponse is the body returned by /api/mix.
type mixResponse struct {
	SessionID  string `json:"session_id"`
	SampleRate int    `json:"sample_rate"`
	Audio      string `json:"audio"`
}

func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	var req mixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}

	result, err := s.sessions.Get(req.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	mixed, err := pca.Mix(result.Components, req.Volumes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	b64, err := wavBase64(mixed, result.SampleRate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, mixResponse{
		SessionID:  req.SessionID,
		SampleRate: result.SampleRate,
		Audio:      b64,
	})
}

// wavBase64 encodes a mono waveform as a base64 float WAV blob.
func wavBase64(samples []float64, sampleRate int) (string, error) {
	buf := audio.NewBuffer(sampleRate, 1, len(samples))
	for i, v := range samples {
		buf.Data[0][i] = float32(v)
	}
	var out bytes.Buffer
	if err := audio.EncodeWAV(&out, buf); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out.Bytes()), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
