// Package rpc implements the JSON-RPC 2.0 server of the NFT interface node.
//
// The server lets clients submit transactions and query account state, the
// NFT interface records and the transaction journal.
//
// Supported methods:
//   - Account: getAccountInfo, getBalance, getMultipleAccounts, getProgramAccounts
//   - Transaction: sendTransaction, getTransaction, getSignaturesForAddress, getSignatureStatuses
//   - Node: getSlot, getHealth, getVersion, getNodeStatus, getLatestBlockhash,
//     getMinimumBalanceForRentExemption, requestAirdrop
//   - NFT interface: getInterfaceRecord, getWhitelistRecord
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortiblox/X1-Interface/internal/types"
	"github.com/fortiblox/X1-Interface/pkg/accounts"
	"github.com/fortiblox/X1-Interface/pkg/journal"
	"github.com/fortiblox/X1-Interface/pkg/node"
	"github.com/fortiblox/X1-Interface/pkg/svm"
	"github.com/fortiblox/X1-Interface/pkg/svm/programs/nftinterface"
)

// Backend is the node surface served over RPC. *node.Node implements it.
type Backend interface {
	ProgramID() types.Pubkey
	LatestBlockhash() types.Hash
	Rent() types.Rent
	Status() node.Status

	Account(pubkey types.Pubkey) (*accounts.Account, error)
	ProgramAccounts(owner types.Pubkey) ([]accounts.AccountEntry, error)
	Airdrop(pubkey types.Pubkey, lamports uint64) error

	Submit(tx *svm.Transaction) (*svm.ExecutionResult, error)
	Transaction(signature types.Signature) (*journal.Entry, error)
	History(address types.Pubkey, opts *journal.QueryOptions) ([]*journal.Entry, error)

	InterfaceRecord(authority types.Pubkey) (types.Pubkey, *nftinterface.InterfaceRecord, error)
	WhitelistRecord(authority, target types.Pubkey) (types.Pubkey, *nftinterface.WhitelistRecord, error)
}

// Config holds RPC server configuration.
type Config struct {
	// Addr is the listen address (host:port).
	Addr string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// MaxRequestSize is the maximum allowed request body size in bytes.
	MaxRequestSize int64

	// EnableCORS enables CORS headers for browser access.
	EnableCORS bool

	// AllowedOrigins specifies allowed CORS origins (empty means all).
	AllowedOrigins []string

	// EnableAirdrop serves requestAirdrop.
	EnableAirdrop bool

	// MaxAirdrop caps the lamports of one airdrop request. Zero means no cap.
	MaxAirdrop uint64

	// LogRequests enables request logging.
	LogRequests bool
}

// DefaultConfig returns a default RPC server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8899",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxRequestSize: 50 * 1024, // 50KB
		EnableCORS:     true,
		MaxAirdrop:     10_000_000_000,
	}
}

// Server is the JSON-RPC 2.0 server.
type Server struct {
	config  Config
	backend Backend
	log     *logrus.Entry

	healthy  bool
	healthMu sync.RWMutex

	// HTTP server
	server *http.Server

	// Method handlers
	handlers map[string]handlerFunc

	// Lifecycle
	mu      sync.Mutex
	running bool
}

// handlerFunc is a JSON-RPC method handler.
type handlerFunc func(params json.RawMessage) (interface{}, *RPCError)

// New creates a new RPC server.
func New(config Config, backend Backend) *Server {
	if config.MaxRequestSize == 0 {
		config.MaxRequestSize = DefaultConfig().MaxRequestSize
	}
	s := &Server{
		config:   config,
		backend:  backend,
		log:      logrus.StandardLogger().WithField("type", "rpc"),
		healthy:  true,
		handlers: make(map[string]handlerFunc),
	}
	s.registerHandlers()
	return s
}

// registerHandlers registers all RPC method handlers.
func (s *Server) registerHandlers() {
	// Account methods
	s.handlers["getAccountInfo"] = s.getAccountInfo
	s.handlers["getBalance"] = s.getBalance
	s.handlers["getMultipleAccounts"] = s.getMultipleAccounts
	s.handlers["getProgramAccounts"] = s.getProgramAccounts

	// Transaction methods
	s.handlers["sendTransaction"] = s.sendTransaction
	s.handlers["getTransaction"] = s.getTransaction
	s.handlers["getSignaturesForAddress"] = s.getSignaturesForAddress
	s.handlers["getSignatureStatuses"] = s.getSignatureStatuses

	// Node methods
	s.handlers["getSlot"] = s.getSlot
	s.handlers["getHealth"] = s.getHealth
	s.handlers["getVersion"] = s.getVersion
	s.handlers["getNodeStatus"] = s.getNodeStatus
	s.handlers["getLatestBlockhash"] = s.getLatestBlockhash
	s.handlers["getMinimumBalanceForRentExemption"] = s.getMinimumBalanceForRentExemption
	s.handlers["requestAirdrop"] = s.requestAirdrop

	// NFT interface methods
	s.handlers["getInterfaceRecord"] = s.getInterfaceRecord
	s.handlers["getWhitelistRecord"] = s.getWhitelistRecord
}

// Handler returns the HTTP handler serving JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRPC)
	return s.corsMiddleware(mux)
}

// Start serves requests until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	server := s.server
	s.mu.Unlock()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			s.log.WithError(err).Warn("shutdown failed")
		}
	}()

	s.log.WithField("addr", s.config.Addr).Info("server starting")

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the RPC server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SetHealthy sets the server health status.
func (s *Server) SetHealthy(healthy bool) {
	s.healthMu.Lock()
	s.healthy = healthy
	s.healthMu.Unlock()
}

// IsHealthy returns the current health status.
func (s *Server) IsHealthy() bool {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.healthy
}

// corsMiddleware adds CORS headers if enabled.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	if !s.config.EnableCORS {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			allowed := len(s.config.AllowedOrigins) == 0
			for _, allowedOrigin := range s.config.AllowedOrigins {
				if allowedOrigin == origin || allowedOrigin == "*" {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleRPC handles incoming JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/json" {
		s.writeJSON(w, Response{JSONRPC: JSONRPCVersion, Error: ErrInvalidRequest})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		s.writeJSON(w, Response{JSONRPC: JSONRPCVersion, Error: ErrParseError})
		return
	}

	if len(body) > 0 && body[0] == '[' {
		s.handleBatchRequest(w, body)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, Response{JSONRPC: JSONRPCVersion, Error: ErrParseError})
		return
	}
	s.writeJSON(w, s.call(req))
}

// handleBatchRequest handles batch JSON-RPC requests.
func (s *Server) handleBatchRequest(w http.ResponseWriter, body []byte) {
	var requests []Request
	if err := json.Unmarshal(body, &requests); err != nil {
		s.writeJSON(w, Response{JSONRPC: JSONRPCVersion, Error: ErrParseError})
		return
	}

	if len(requests) == 0 {
		s.writeJSON(w, Response{JSONRPC: JSONRPCVersion, Error: ErrInvalidRequest})
		return
	}

	responses := make([]Response, len(requests))
	for i, req := range requests {
		responses[i] = s.call(req)
	}
	s.writeJSON(w, responses)
}

// call validates and dispatches a single request.
func (s *Server) call(req Request) Response {
	resp := Response{JSONRPC: JSONRPCVersion, ID: req.ID}
	if req.JSONRPC != JSONRPCVersion {
		resp.Error = ErrInvalidRequest
		return resp
	}

	if s.config.LogRequests {
		s.log.WithFields(logrus.Fields{
			"method": req.Method,
			"id":     req.ID,
		}).Debug("request")
	}

	resp.Result, resp.Error = s.dispatch(req.Method, req.Params)
	return resp
}

// dispatch routes RPC methods to their handlers.
func (s *Server) dispatch(method string, params json.RawMessage) (interface{}, *RPCError) {
	handler, ok := s.handlers[method]
	if !ok {
		return nil, NewRPCError(MethodNotFound, fmt.Sprintf("Method not found: %s", method))
	}
	return handler(params)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}
