/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package srv

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"jinr.ru/greenlab/go-xrit/pkg/catalog"
	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/log"
	"jinr.ru/greenlab/go-xrit/pkg/products"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

const (
	DefaultProductsLimit = 50
	MaxProductsLimit     = 1000
	shutdownTimeout      = 5 * time.Second
)

// Info summarizes the receiver configuration
type Info struct {
	Version     string  `json:"version"`
	Spacecraft  string  `json:"spacecraft"`
	Downlink    string  `json:"downlink"`
	Input       string  `json:"input"`
	Output      string  `json:"output"`
	Images      bool    `json:"images"`
	XRIT        bool    `json:"xrit"`
	IgnoreVCIDs []int   `json:"ignore_vcids"`
	Interval    float64 `json:"interval"`
}

type Stats struct {
	status.Stats
	Uptime float64 `json:"uptime"`
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	registry *status.Registry
	catalog  *catalog.State
	swagger  *loads.Document
	upgrader websocket.Upgrader
}

// NewApiServer serves the registry and, when cat is not nil, the product catalog
func NewApiServer(ctx context.Context, cfg *config.Config, registry *status.Registry, cat *catalog.State) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s", cfg.DashboardAddr())
	doc, err := loadSwagger()
	if err != nil {
		return nil, err
	}
	s := &ApiServer{
		Context:  ctx,
		Config:   cfg,
		registry: registry,
		catalog:  cat,
		swagger:  doc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.configureRouter()
	return s, nil
}

// Run serves until the context is done
func (s *ApiServer) Run() error {
	log.Debug("Starting API server: %s", s.DashboardAddr())
	accessLog := log.Writer()
	defer accessLog.Close()

	httpServer := &http.Server{
		Handler: s.Handler(accessLog),
		Addr:    s.DashboardAddr(),
	}
	go func() {
		<-s.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(ctx)
	}()
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler is the router with access logging and CORS
func (s *ApiServer) Handler(accessLog io.Writer) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
	)
	return cors(handlers.LoggingHandler(accessLog, s.Router))
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("", s.handleInfo()).Methods("GET")
	subRouter.HandleFunc("/", s.handleInfo()).Methods("GET")
	subRouter.HandleFunc("/current/vcid", s.handleCurrentVCID()).Methods("GET")
	subRouter.HandleFunc("/current/progress", s.handleProgress()).Methods("GET")
	subRouter.HandleFunc("/current/partial", s.handlePartials()).Methods("GET")
	subRouter.HandleFunc("/latest", s.handleLatest()).Methods("GET")
	subRouter.HandleFunc("/latest/xrit", s.handleLatestFile()).Methods("GET")
	subRouter.HandleFunc("/latest/{type}", s.handleLatest()).Methods("GET")
	subRouter.HandleFunc("/latest/{type}/image", s.handleLatestImage()).Methods("GET")
	subRouter.HandleFunc("/latest/{type}/partial", s.handlePartialImage()).Methods("GET")
	subRouter.HandleFunc("/stats", s.handleStats()).Methods("GET")
	subRouter.HandleFunc("/products/{type}", s.handleProducts()).Methods("GET")
	subRouter.PathPrefix("/received/").Handler(s.handleReceived()).Methods("GET")
	subRouter.HandleFunc("/ws", s.handleWebsocket())
	subRouter.HandleFunc("/swagger.json", s.handleSwagger()).Methods("GET")
	subRouter.Handle("/docs", middleware.Redoc(middleware.RedocOpts{
		BasePath: "/api",
		Path:     "docs",
		SpecURL:  "/api/swagger.json",
		Title:    "go-xrit API",
	}, http.NotFoundHandler())).Methods("GET")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Can not write response: %s", err)
	}
}

// category reads the {type} route variable, it answers 404 for unknown categories
func category(w http.ResponseWriter, r *http.Request) (products.Category, bool) {
	name := mux.Vars(r)["type"]
	c, ok := products.ParseCategory(name)
	if !ok {
		http.Error(w, "Unknown product type: "+name, http.StatusNotFound)
	}
	return c, ok
}

func (s *ApiServer) handleInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &Info{
			Version:     config.Version,
			Spacecraft:  s.Rx.Spacecraft,
			Downlink:    s.Rx.Mode,
			Input:       s.Rx.Input,
			Output:      s.Output.Path,
			Images:      s.Output.Images,
			XRIT:        s.Output.XRIT,
			IgnoreVCIDs: s.Output.IgnoreVCIDs,
			Interval:    s.Dashboard.Interval.Seconds(),
		})
	}
}

func (s *ApiServer) handleCurrentVCID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"vcid": s.registry.CurrentVCID()})
	}
}

func (s *ApiServer) handleProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := s.registry.AllProgress()
		list := make([]status.Progress, 0, len(all))
		for _, p := range all {
			list = append(list, p)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].VCID < list[j].VCID })
		writeJSON(w, list)
	}
}

func (s *ApiServer) handlePartials() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.registry.Partials())
	}
}

func (s *ApiServer) handleLatest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if _, ok := mux.Vars(r)["type"]; ok {
			c, ok := category(w, r)
			if !ok {
				return
			}
			name = c.String()
		}
		img, ok := s.registry.LatestImage(name)
		if !ok {
			http.Error(w, "No image received yet", http.StatusNotFound)
			return
		}
		writeJSON(w, &img)
	}
}

func (s *ApiServer) handleLatestFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.registry.LatestFile()
		if !ok {
			http.Error(w, "No file received yet", http.StatusNotFound)
			return
		}
		writeJSON(w, &f)
	}
}

func (s *ApiServer) handleLatestImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := category(w, r)
		if !ok {
			return
		}
		img, ok := s.registry.LatestImage(c.String())
		if !ok || img.ImagePath == "" {
			http.Error(w, "No image received yet", http.StatusNotFound)
			return
		}
		serveFile(w, r, img.ImagePath)
	}
}

func (s *ApiServer) handlePartialImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := category(w, r)
		if !ok {
			return
		}
		p, ok := s.registry.Partial(c.String())
		if !ok {
			http.Error(w, "No image is being received", http.StatusNotFound)
			return
		}
		serveFile(w, r, p.Path)
	}
}

func (s *ApiServer) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := s.registry.Stats()
		writeJSON(w, &Stats{
			Stats:  stats,
			Uptime: time.Since(stats.Started).Seconds(),
		})
	}
}

func (s *ApiServer) handleProducts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := category(w, r)
		if !ok {
			return
		}
		if s.catalog == nil {
			http.Error(w, "Catalog is not available", http.StatusServiceUnavailable)
			return
		}
		limit := DefaultProductsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}
		if limit > MaxProductsLimit {
			limit = MaxProductsLimit
		}
		records, err := s.catalog.List(c.String(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []*catalog.Record{}
		}
		writeJSON(w, records)
	}
}

// receivedPath maps a request path to a file below root.
// Paths climbing out of root are refused.
func receivedPath(root, rel string) (string, bool) {
	for _, part := range strings.Split(strings.ReplaceAll(rel, "\\", "/"), "/") {
		if part == ".." {
			return "", false
		}
	}
	clean := path.Clean("/" + rel)
	if clean == "/" {
		return "", false
	}
	return filepath.Join(root, filepath.FromSlash(clean)), true
}

func (s *ApiServer) handleReceived() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, "/api/received/")
		p, ok := receivedPath(s.Output.Path, rel)
		if !ok {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		serveFile(w, r, p)
	}
}

// serveFile sends a regular file, directories are not listed
func serveFile(w http.ResponseWriter, r *http.Request, p string) {
	f, err := os.Open(p)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *ApiServer) handleSwagger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(s.swagger.Raw())
	}
}

// handleWebsocket pushes a registry snapshot every dashboard interval until the peer leaves
func (s *ApiServer) handleWebsocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("Websocket upgrade failed: %s", err)
			return
		}
		defer conn.Close()

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		interval := s.Dashboard.Interval
		if interval < config.MinDashInterval {
			interval = config.MinDashInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := conn.WriteJSON(s.registry.Snapshot()); err != nil {
				log.Debug("Websocket %s closed: %s", conn.RemoteAddr(), err)
				return
			}
			select {
			case <-gone:
				return
			case <-s.Done():
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			case <-ticker.C:
			}
		}
	}
}
