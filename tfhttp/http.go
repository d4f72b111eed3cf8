package tfhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/brutella/hc/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tfaccessory "github.com/cloudkucooland/roombabridge/accessory"
	"github.com/cloudkucooland/roombabridge/config"
	"github.com/cloudkucooland/roombabridge/platform"
	"github.com/cloudkucooland/roombabridge/roomba"
)

// Platform is the primary handle
type Platform struct {
	Running bool
}

var srv *http.Server

// Startup is called by the platform management to get things running
func (h Platform) Startup(c *config.Config) platform.Control {
	if c.HTTPAddress == "" {
		log.Info.Print("no HTTPAddress configured, HTTP control channel disabled")
		return h
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(roomba.Collectors()...)

	var handler http.Handler = NewRouter(reg)
	if c.Debug {
		handler = debugMW(handler)
	}

	srv = &http.Server{
		Addr:         c.HTTPAddress,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      handler,
	}

	go func(s *http.Server) {
		log.Info.Printf("starting up HTTP control channel on %s", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Info.Print(err)
		}
	}(srv)

	h.Running = true
	return h
}

// Shutdown is called by the platform management to shut things down
func (h Platform) Shutdown() platform.Control {
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Info.Print(err)
		}
		srv = nil
	}
	h.Running = false
	return h
}

// NewRouter builds the control channel routes; metrics are served from reg
func NewRouter(reg prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", homeHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s := r.PathPrefix("/roomba").Subrouter()
	s.HandleFunc("/", listHandler).Methods(http.MethodGet)
	s.HandleFunc("/{name}/status", statusHandler).Methods(http.MethodGet)
	s.HandleFunc("/{name}/{cmd:start|dock}", commandHandler).Methods(http.MethodGet, http.MethodPost)
	return r
}

type statusReply struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	On            bool    `json:"on"`
	IsCharging    bool    `json:"is_charging"`
	ChargingState string  `json:"charging_state"`
	BatteryLevel  float64 `json:"battery_level"`
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug.Print("HomeHandler requested")
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func listHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"roombas": roomba.Names()})
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ad, ok := roomba.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown roomba"})
		return
	}

	s, err := ad.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "bad", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusReply{
		Name:          name,
		Status:        s.State,
		On:            s.Running(),
		IsCharging:    s.IsCharging,
		ChargingState: s.ChargingState().String(),
		BatteryLevel:  s.BatteryLevel,
	})
}

func commandHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, cmd := vars["name"], vars["cmd"]
	ad, ok := roomba.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "unknown roomba"})
		return
	}

	log.Info.Printf("from [%s] to roomba [%s]: [%s]", r.RemoteAddr, name, cmd)
	if err := ad.SetPowerState(r.Context(), cmd == "start"); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "bad", "error": err.Error()})
		return
	}
	if err := roomba.Refresh(r.Context(), name); err != nil {
		log.Info.Printf("refresh after %s: %s", cmd, err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Info.Print(err)
	}
}

func debugMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		dump, _ := httputil.DumpRequest(req, false)
		log.Debug.Print(string(dump))
		next.ServeHTTP(res, req)
	})
}

// AddAccessory - do not use, just satisfies the Platform interface
func (h Platform) AddAccessory(a *tfaccessory.TFAccessory) {
	//
}

// GetAccessory - do not use, just satisfies the Platform interface
func (h Platform) GetAccessory(name string) (*tfaccessory.TFAccessory, bool) {
	return nil, false
}

// Background - just satisfies the Platform interface
func (h Platform) Background() {
	// nothing to do
}
