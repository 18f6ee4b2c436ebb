package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/solatis/logspec/internal/core/api"
	"github.com/solatis/logspec/internal/core/auth"
	"github.com/solatis/logspec/internal/core/config"
	"github.com/solatis/logspec/internal/core/ingest"
	"github.com/solatis/logspec/internal/types"
)

// HTTPServer serves the JSON API over chi.
type HTTPServer struct {
	router   *chi.Mux
	server   *http.Server
	listener net.Listener
	svc      *api.Service
	auth     *auth.Authenticator
	config   *config.ServerConfig
	log      logrus.FieldLogger
}

// classifyRequest is the JSON body of POST /v1/classify.
type classifyRequest struct {
	Records []struct {
		ShipMethod string            `json:"ship_method"`
		Country    string            `json:"country"`
		Fields     map[string]string `json:"fields,omitempty"`
	} `json:"records"`
}

type healthResponse struct {
	Status      string `json:"status"`
	LoadID      string `json:"load_id,omitempty"`
	Source      string `json:"source,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	ShipMethods int    `json:"ship_methods"`
	Inference   string `json:"inference"`
}

type decisionJSON struct {
	Matched bool   `json:"matched"`
	Reason  string `json:"reason"`
}

type classifyResponse struct {
	LoadID   string         `json:"load_id"`
	Checksum string         `json:"checksum"`
	Total    int            `json:"total"`
	Matched  int            `json:"matched"`
	Results  []decisionJSON `json:"results"`
}

type shipMethodResponse struct {
	ShipMethod    string   `json:"ship_method"`
	Found         bool     `json:"found"`
	Countries     []string `json:"countries"`
	OutsideRegion bool     `json:"outside_region"`
	Inferred      bool     `json:"inferred"`
	Sources       []string `json:"sources"`
}

type reloadResponse struct {
	LoadID      string `json:"load_id"`
	Source      string `json:"source"`
	ShipMethods int    `json:"ship_methods"`
	Accepted    int    `json:"accepted"`
	Skipped     int    `json:"skipped"`
	Inferred    int    `json:"inferred"`
	Empty       int    `json:"empty"`
	Checksum    string `json:"checksum"`
}

// NewHTTPServer creates the HTTP server and its routes.
func NewHTTPServer(cfg *config.ServerConfig, svc *api.Service, authenticator *auth.Authenticator, log logrus.FieldLogger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &HTTPServer{
		router: chi.NewRouter(),
		svc:    svc,
		auth:   authenticator,
		config: cfg,
		log:    log,
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *HTTPServer) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/ship-methods/{key}", s.handleShipMethod)
		r.Post("/classify", s.handleClassify)

		r.Group(func(r chi.Router) {
			if s.auth.Enabled() {
				r.Use(s.auth.Middleware)
			}
			r.Post("/rules", s.handleReload)
		})
	})
}

// Router returns the underlying chi router for testing.
func (s *HTTPServer) Router() *chi.Mux {
	return s.router
}

// requestLogger logs one line per request through logrus.
func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Status()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		LoadID:      string(st.LoadID),
		Source:      st.Source,
		Checksum:    st.Checksum,
		ShipMethods: st.ShipMethods,
		Inference:   st.Inference,
	})
}

func (s *HTTPServer) handleShipMethod(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.LookupShipMethod(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := shipMethodResponse{
		ShipMethod:    string(info.ShipMethod),
		Found:         info.Found,
		Countries:     make([]string, len(info.Countries)),
		OutsideRegion: info.OutsideRegion,
		Inferred:      info.Inferred(),
		Sources:       make([]string, len(info.Sources)),
	}
	for i, c := range info.Countries {
		resp.Countries[i] = string(c)
	}
	for i, k := range info.Sources {
		resp.Sources[i] = string(k)
	}

	status := http.StatusOK
	if !info.Found {
		status = http.StatusNotFound
	}
	writeJSON(w, status, resp)
}

// handleClassify accepts JSON {"records": [...]} or a CSV/TSV record file.
func (s *HTTPServer) handleClassify(w http.ResponseWriter, r *http.Request) {
	records, err := s.decodeRecords(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.svc.Classify(r.Context(), records)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := classifyResponse{
		LoadID:   string(res.LoadID),
		Checksum: res.Checksum,
		Total:    res.Total,
		Matched:  res.Matched,
		Results:  make([]decisionJSON, len(res.Decisions)),
	}
	for i, d := range res.Decisions {
		resp.Results[i] = decisionJSON{Matched: d.Matched, Reason: d.Reason.String()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) decodeRecords(w http.ResponseWriter, r *http.Request) ([]types.Record, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "text/csv", "text/tab-separated-values":
		body := http.MaxBytesReader(w, r.Body, types.MaxRecordFileSize)
		tbl, err := ingest.Read(body, ingest.Options{})
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, fmt.Errorf("%w: %v", types.ErrRecordFileTooLarge, err)
			}
			return nil, err
		}
		return tbl.Records, nil

	case "application/json", "":
		var req classifyRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, types.MaxRecordFileSize))
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err)
		}
		records := make([]types.Record, len(req.Records))
		for i, rec := range req.Records {
			if len(rec.Fields) > types.MaxFieldsPerRecord {
				return nil, fmt.Errorf("%w: records[%d]", types.ErrTooManyFields, i)
			}
			records[i] = types.Record{ShipMethod: rec.ShipMethod, Country: rec.Country, Fields: rec.Fields}
		}
		return records, nil
	}

	return nil, fmt.Errorf("%w: unsupported content type %q", api.ErrInvalidRequest, mediaType)
}

// handleReload takes the raw rule table as the request body.
func (s *HTTPServer) handleReload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, types.MaxRuleTableSize))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = fmt.Errorf("%w: %v", types.ErrRuleTableTooLarge, err)
		}
		s.respondError(w, r, err)
		return
	}

	source := r.URL.Query().Get("source")
	if p, ok := auth.PrincipalFromContext(r.Context()); ok && source == "" {
		source = "api:" + p.Label
	}

	res, err := s.svc.ReloadRules(r.Context(), string(body), source)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reloadResponse{
		LoadID:      string(res.LoadID),
		Source:      res.Source,
		ShipMethods: res.ShipMethods,
		Accepted:    res.Report.Accepted,
		Skipped:     res.Report.Skipped,
		Inferred:    len(res.Report.Inferred),
		Empty:       len(res.Report.EmptyKeys),
		Checksum:    res.Checksum,
	})
}

// respondError logs err and writes {"error": ...} with the mapped status.
func (s *HTTPServer) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.HTTPStatus(err)
	entry := s.log.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"method":     r.Method,
		"status":     status,
		"request_id": middleware.GetReqID(r.Context()),
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Listen binds the configured HTTP address.
func (s *HTTPServer) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener
	return nil
}

// Serve blocks serving HTTP until Shutdown. A clean shutdown returns nil.
func (s *HTTPServer) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	if err := s.server.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Called before Serve, it makes Serve
// return immediately.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, or nil before Listen.
func (s *HTTPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
