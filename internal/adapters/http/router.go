package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
	"github.com/kirillkom/legal-rag-assistant/internal/observability/metrics"
)

const (
	serviceName      = "api"
	maxUploadBytes   = 64 << 20
	backpressureWait = 250 * time.Millisecond
	defaultTraceList = 20
)

type Router struct {
	cfg       config.Config
	queryUC   ports.LegalQueryService
	retriever ports.ProvisionRetriever
	ingestUC  ports.CorpusIngestor
	runs      ports.IngestRunReader
	traces    ports.QueryTraceReader
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	queryUC ports.LegalQueryService,
	retriever ports.ProvisionRetriever,
	ingestUC ports.CorpusIngestor,
	runs ports.IngestRunReader,
	traces ports.QueryTraceReader,
) *Router {
	return &Router{
		cfg:       cfg,
		queryUC:   queryUC,
		retriever: retriever,
		ingestUC:  ingestUC,
		runs:      runs,
		traces:    traces,
		metrics:   metrics.NewHTTPServerMetrics(serviceName),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())
	mux.HandleFunc("POST /v1/legal/query", rt.queryLegal)
	mux.HandleFunc("POST /v1/legal/retrieve", rt.retrieveProvisions)
	mux.HandleFunc("GET /v1/legal/traces", rt.listTraces)
	mux.HandleFunc("POST /v1/corpus/{act}", rt.uploadCorpus)
	mux.HandleFunc("GET /v1/corpus/runs/{id}", rt.getIngestRun)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Question   string   `json:"question"`
	Act        string   `json:"act"`
	SubQueries []string `json:"sub_queries"`
}

func decodeQuery(r *http.Request) (queryRequest, error) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return req, domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("question is required"))
	}
	return req, nil
}

func (rt *Router) queryLegal(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	started := time.Now()
	answer, err := rt.queryUC.Answer(r.Context(), req.Question, req.Act)
	if err != nil {
		rt.metrics.RecordRetrievalFailure(serviceName, "query", domain.KindName(err))
		writeError(w, err)
		return
	}
	rt.metrics.RecordRetrieval(
		serviceName, "query", string(answer.Act),
		len(answer.Sources), answer.StrategyCounts, time.Since(started),
	)
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) retrieveProvisions(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	started := time.Now()
	result, err := rt.retriever.Retrieve(r.Context(), req.SubQueries, req.Question, req.Act)
	if err != nil {
		rt.metrics.RecordRetrievalFailure(serviceName, "retrieve", domain.KindName(err))
		writeError(w, err)
		return
	}
	rt.metrics.RecordRetrieval(
		serviceName, "retrieve", string(result.Intent.Act),
		len(result.Documents), result.StrategyCounts, time.Since(started),
	)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listTraces(w http.ResponseWriter, r *http.Request) {
	limit := defaultTraceList
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	traces, err := rt.traces.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": traces})
}

func (rt *Router) uploadCorpus(w http.ResponseWriter, r *http.Request) {
	act, ok := domain.ParseAct(r.PathValue("act"))
	if !ok || !act.IsScoped() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown act " + r.PathValue("act")})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	run, err := rt.ingestUC.Upload(r.Context(), act, fileHeader.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getIngestRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "run id is required"})
		return
	}

	run, err := rt.runs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
