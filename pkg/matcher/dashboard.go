// argus/pkg/matcher/dashboard.go

package matcher

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kwalsh/argus/pkg/logging"
	"kwalsh/argus/pkg/ruleset"
)

// Dashboard serves a small observation surface for one matcher: cache
// statistics streamed over a websocket, plus ad-hoc match queries against
// the registered rulesets.
type Dashboard struct {
	matcher *RulesetMatcher
	// The matcher itself is single-threaded; all calls into it go
	// through this mutex.
	matcherMutex   sync.Mutex
	port           int
	updateInterval time.Duration

	clients      map[*websocket.Conn]bool
	clientsMutex sync.Mutex

	rulesets      map[string]*ruleset.Ruleset
	rulesetsMutex sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now. In production, this should be more restrictive.
	},
}

func NewDashboard(m *RulesetMatcher, port int, updateInterval time.Duration) *Dashboard {
	return &Dashboard{
		matcher:        m,
		port:           port,
		updateInterval: updateInterval,
		clients:        make(map[*websocket.Conn]bool),
		rulesets:       make(map[string]*ruleset.Ruleset),
	}
}

// SetMatcher swaps in a freshly built matcher, e.g. after a
// configuration reload.
func (d *Dashboard) SetMatcher(m *RulesetMatcher) {
	d.matcherMutex.Lock()
	d.matcher = m
	d.matcherMutex.Unlock()
}

// RegisterRuleset makes a ruleset queryable through the /match endpoint.
func (d *Dashboard) RegisterRuleset(rs *ruleset.Ruleset) {
	d.rulesetsMutex.Lock()
	d.rulesets[rs.ID] = rs
	d.rulesetsMutex.Unlock()
}

func (d *Dashboard) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Server is running")
	})
	mux.HandleFunc("/stats", d.handleStats)
	mux.HandleFunc("/match", d.handleMatch)
	mux.HandleFunc("/events", d.handleWebSocket)

	go d.broadcastUpdates()

	addr := fmt.Sprintf(":%d", d.port)
	logging.Logger.Info().Str("addr", addr).Msg("Dashboard starting")
	return http.ListenAndServe(addr, mux)
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	d.matcherMutex.Lock()
	stats := d.matcher.Stats()
	d.matcherMutex.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to encode stats")
	}
}

// handleMatch answers ad-hoc queries: /match?ruleset=ID&host=NAME and
// optionally &service=DESCRIPTION.
func (d *Dashboard) handleMatch(w http.ResponseWriter, r *http.Request) {
	rulesetID := r.URL.Query().Get("ruleset")
	host := r.URL.Query().Get("host")
	service := r.URL.Query().Get("service")

	d.rulesetsMutex.RLock()
	rs, ok := d.rulesets[rulesetID]
	d.rulesetsMutex.RUnlock()
	if !ok {
		http.Error(w, fmt.Sprintf("unknown ruleset %q", rulesetID), http.StatusNotFound)
		return
	}

	d.matcherMutex.Lock()
	var values []interface{}
	var err error
	if service != "" {
		serviceLabels, labelErr := d.matcher.LabelsOfService(host, service)
		if labelErr != nil {
			d.matcherMutex.Unlock()
			http.Error(w, labelErr.Error(), http.StatusInternalServerError)
			return
		}
		matchObject := NewServiceMatchObject(host, service, serviceLabels)
		values, err = d.matcher.GetServiceRulesetValues(matchObject, rs)
	} else {
		values, err = d.matcher.GetHostRulesetValues(NewHostMatchObject(host), rs)
	}
	d.matcherMutex.Unlock()
	if err != nil {
		logging.LogError(logging.Logger, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"ruleset": rulesetID,
		"host":    host,
		"service": service,
		"values":  values,
	}); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to encode match result")
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Error upgrading to WebSocket")
		return
	}
	defer conn.Close()

	logging.Logger.Debug().Str("client", conn.RemoteAddr().String()).Msg("Client connected")

	d.clientsMutex.Lock()
	d.clients[conn] = true
	d.clientsMutex.Unlock()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}

	d.clientsMutex.Lock()
	delete(d.clients, conn)
	d.clientsMutex.Unlock()

	logging.Logger.Debug().Str("client", conn.RemoteAddr().String()).Msg("Client disconnected")
}

func (d *Dashboard) broadcastUpdates() {
	ticker := time.NewTicker(d.updateInterval)
	defer ticker.Stop()

	for range ticker.C {
		d.matcherMutex.Lock()
		stats := d.matcher.Stats()
		d.matcherMutex.Unlock()

		message, err := json.Marshal(stats)
		if err != nil {
			logging.Logger.Error().Err(err).Msg("Error marshaling stats")
			continue
		}

		d.clientsMutex.Lock()
		for client := range d.clients {
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				client.Close()
				delete(d.clients, client)
			}
		}
		d.clientsMutex.Unlock()
	}
}
