// Package httpapi 托管引擎的 HTTP 接口。调用者身份取自 X-Swap-Caller 头，
// 部署时应位于完成身份认证的网关之后。
package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"atomic-swap-go/asset"
	"atomic-swap-go/escrow"
	"atomic-swap-go/infrastructure/logger"
	"atomic-swap-go/order"
)

// CallerHeader 携带调用者地址的请求头。
const CallerHeader = "X-Swap-Caller"

const maxBodyBytes = 1 << 20

// Options 服务依赖。Ledger/Events/Health 可为空，对应路由不注册或始终健康。
// 铸币接口不做身份检查，仅在 LedgerAdmin 打开时注册。
type Options struct {
	Engine      *escrow.Engine
	Ledger      asset.Book
	LedgerAdmin bool
	Events      http.Handler
	Health      func() error
	Logger      *logger.Logger
}

type Server struct {
	engine *escrow.Engine
	ledger asset.Book
	admin  bool
	events http.Handler
	health func() error
	log    *logger.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Server{
		engine: opts.Engine,
		ledger: opts.Ledger,
		admin:  opts.LedgerAdmin,
		events: opts.Events,
		health: opts.Health,
		log:    opts.Logger,
	}, nil
}

// Handler 返回完整路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", s.handleMake)
	mux.HandleFunc("GET /v1/orders", s.handleList)
	mux.HandleFunc("GET /v1/orders/{id}", s.handleGet)
	mux.HandleFunc("POST /v1/orders/{id}/take", s.handleTake)
	mux.HandleFunc("POST /v1/orders/{id}/cancel", s.handleCancel)
	if s.ledger != nil {
		if s.admin {
			mux.HandleFunc("POST /v1/ledger/mint", s.handleMint)
		}
		mux.HandleFunc("POST /v1/ledger/approve", s.handleApprove)
		mux.HandleFunc("GET /v1/ledger/balance", s.handleBalance)
	}
	if s.events != nil {
		mux.Handle("/ws/events", s.events)
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withAccessLog(mux)
}

func (s *Server) handleMake(w http.ResponseWriter, r *http.Request) {
	var req makeRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.engine.Make(r.Context(), caller(r), escrow.MakeRequest{
		SellAsset:             req.SellAsset,
		BuyAsset:              req.BuyAsset,
		MakerReceivingAddress: req.MakerReceivingAddress,
		DesiredTaker:          req.DesiredTaker,
		ExpirationTimestamp:   req.ExpirationTimestamp,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/orders/%d", id))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"orderId": id})
}

func (s *Server) handleTake(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	var req takeRequest
	if !s.decode(w, r, &req) {
		return
	}
	o, err := s.engine.Take(r.Context(), caller(r), id, escrow.TakeRequest{
		SellAsset:             req.SellAsset,
		TakerReceivingAddress: req.TakerReceivingAddress,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(o))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	o, err := s.engine.Cancel(r.Context(), caller(r), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(o))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	o, err := s.engine.Order(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(o))
}

// handleList 支持 status/maker/taker/limit 查询参数。
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.Filter{
		Maker: asset.Address(q.Get("maker")),
		Taker: asset.Address(q.Get("taker")),
	}
	if v := q.Get("status"); v != "" {
		st, ok := order.ParseStatus(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "request", fmt.Sprintf("unknown status %q", v))
			return
		}
		f.Status = &st
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "request", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	orders, err := s.engine.Orders(r.Context(), f)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, viewOf(o))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": views})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func caller(r *http.Request) asset.Address {
	return asset.Address(r.Header.Get(CallerHeader))
}

func (s *Server) orderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request", "order id must be an unsigned integer")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "request", "invalid json body: "+err.Error())
		return false
	}
	return true
}

// statusFor 错误类别到 HTTP 状态码。
func statusFor(kind escrow.Kind) int {
	switch kind {
	case escrow.KindValidation, escrow.KindMatching:
		return http.StatusBadRequest
	case escrow.KindAuthorization:
		return http.StatusForbidden
	case escrow.KindNotFound:
		return http.StatusNotFound
	case escrow.KindState:
		return http.StatusConflict
	case escrow.KindTemporal:
		return http.StatusGone
	case escrow.KindCustody:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	kind := escrow.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.log.LogError(err, map[string]interface{}{"component": "httpapi"})
	}
	writeError(w, status, string(kind), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// withAccessLog 记录每个请求的状态码与耗时。
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("caller", r.Header.Get(CallerHeader)),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack websocket 升级需要。
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
