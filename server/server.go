package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/codewidneha/kitchenhub/handlers"
	"github.com/codewidneha/kitchenhub/middlewares"
)

type Server struct {
	Router *mux.Router
	server *http.Server
}

const (
	readTimeout       = 5 * time.Minute
	readHeaderTimeout = 30 * time.Second
	writeTimeout      = 5 * time.Minute
)

func SetupRoutes(h *handlers.Handler) *Server {
	router := mux.NewRouter()
	router.Use(middlewares.RequestLogger)

	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scrape", h.TriggerIngest).Methods("POST")
	api.HandleFunc("/kitchens/search", h.SearchKitchens).Methods("GET")
	api.HandleFunc("/kitchens/nearby", h.NearbyKitchens).Methods("GET")
	api.HandleFunc("/kitchens/{id}", h.GetKitchenDetails).Methods("GET")
	api.HandleFunc("/menu/search", h.SearchMenu).Methods("GET")
	api.HandleFunc("/promotions/active", h.ActivePromotions).Methods("GET")

	return &Server{
		Router: router,
	}
}

func (svr *Server) Run(port string) error {
	svr.server = &http.Server{
		Addr:              port,
		Handler:           svr.Router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	return svr.server.ListenAndServe()
}

func (svr *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return svr.server.Shutdown(ctx)
}
