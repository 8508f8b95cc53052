package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/logger"
	"github.com/23skdu/longbow-axi/internal/metrics"
)

const (
	maxAlerts = 100
	version   = "1.0.0"
)

// Accelerator is the part of a family handle the monitor reports on.
type Accelerator interface {
	State() accel.State
	IsBusy() bool
}

// HealthStatus represents the health status of the process
type HealthStatus struct {
	Status       string              `json:"status"`
	Timestamp    time.Time           `json:"timestamp"`
	Version      string              `json:"version"`
	Uptime       time.Duration       `json:"uptime"`
	System       SystemInfo          `json:"system"`
	Accelerators []AcceleratorStatus `json:"accelerators"`
	Totals       Totals              `json:"totals"`
	Alerts       []Alert             `json:"alerts"`
}

// SystemInfo contains system-level information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryMB     int    `json:"memory_mb"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// AcceleratorStatus is the live view of one registered core.
type AcceleratorStatus struct {
	Name         string    `json:"name"`
	Family       string    `json:"family"`
	State        string    `json:"state"`
	Busy         bool      `json:"busy"`
	Capabilities any       `json:"capabilities"`
	Registered   time.Time `json:"registered"`
}

// Totals are process-wide configuration counters.
type Totals struct {
	Configured int64 `json:"configured"`
	Rejected   int64 `json:"rejected"`
}

// Alert represents an operational alert
type Alert struct {
	Level      string     `json:"level"`     // info, warning, error, critical
	Component  string     `json:"component"` // accelerator name or subsystem
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type entry struct {
	family     string
	caps       any
	acc        Accelerator
	registered time.Time
}

// Monitor serves health, status and Prometheus metrics for the registered
// accelerators.
type Monitor struct {
	startTime    time.Time
	server       *http.Server
	log          *logger.Logger
	mu           sync.RWMutex
	alerts       []Alert
	accelerators map[string]entry
}

func NewMonitor(log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.Log
	}
	return &Monitor{
		startTime:    time.Now(),
		log:          log.Component("monitor"),
		alerts:       make([]Alert, 0),
		accelerators: make(map[string]entry),
	}
}

// Register adds a handle under name. caps is reported verbatim in /status.
func (m *Monitor) Register(name, family string, caps any, acc Accelerator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accelerators[name] = entry{family: family, caps: caps, acc: acc, registered: time.Now()}
}

func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accelerators, name)
}

// Handler returns the monitor's routes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/healthz", m.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", m.handleDetailedStatus)
	mux.HandleFunc("/admin/alerts", m.handleAlerts)
	mux.HandleFunc("/admin/clear-alerts", m.handleClearAlerts)
	return mux
}

// Start serves until Stop is called. It returns http.ErrServerClosed after a
// clean shutdown.
func (m *Monitor) Start(addr string) error {
	m.mu.Lock()
	m.server = &http.Server{
		Addr:         addr,
		Handler:      m.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	srv := m.server
	m.mu.Unlock()

	m.log.Info("Health monitor starting", "addr", addr)
	return srv.ListenAndServe()
}

func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.RLock()
	srv := m.server
	m.mu.RUnlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// AddAlert adds a new alert
func (m *Monitor) AddAlert(level, component, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts = append(m.alerts, Alert{
		Level:     level,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[1:]
	}
	m.log.Warn("Alert raised", "level", level, "component", component, "message", message)
}

// RecordError raises an error alert for a failed accelerator operation.
func (m *Monitor) RecordError(component, op string, err error) {
	level := "error"
	if errors.Is(err, accel.ErrDeviceIdentityMismatch) {
		level = "critical"
	}
	m.AddAlert(level, component, fmt.Sprintf("%s: %v", op, err))
}

// ResolveAlert resolves an alert
func (m *Monitor) ResolveAlert(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index >= 0 && index < len(m.alerts) {
		now := time.Now()
		m.alerts[index].Resolved = true
		m.alerts[index].ResolvedAt = &now
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := m.Status()
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status":    status.Status,
		"timestamp": status.Timestamp.Format(time.RFC3339),
	})
}

func (m *Monitor) handleDetailedStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.Status())
}

func (m *Monitor) handleAlerts(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	alerts := make([]Alert, len(m.alerts))
	copy(alerts, m.alerts)
	m.mu.RUnlock()

	writeJSON(w, http.StatusOK, alerts)
}

func (m *Monitor) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.Lock()
	m.alerts = m.alerts[:0]
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "alerts cleared"})
}

// Status snapshots the process and every registered accelerator.
func (m *Monitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := "healthy"
	for _, alert := range m.alerts {
		if alert.Resolved {
			continue
		}
		if alert.Level == "critical" {
			status = "critical"
			break
		}
		if alert.Level == "error" {
			status = "degraded"
		}
	}

	accs := make([]AcceleratorStatus, 0, len(m.accelerators))
	for name, e := range m.accelerators {
		accs = append(accs, AcceleratorStatus{
			Name:         name,
			Family:       e.family,
			State:        e.acc.State().String(),
			Busy:         e.acc.IsBusy(),
			Capabilities: e.caps,
			Registered:   e.registered,
		})
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].Name < accs[j].Name })

	alerts := make([]Alert, len(m.alerts))
	copy(alerts, m.alerts)

	return HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		Version:      version,
		Uptime:       time.Since(m.startTime),
		System:       systemInfo(),
		Accelerators: accs,
		Totals: Totals{
			Configured: metrics.ConfiguredTotal(),
			Rejected:   metrics.RejectedTotal(),
		},
		Alerts: alerts,
	}
}

func systemInfo() SystemInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return SystemInfo{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		MemoryMB:     int(ms.Sys / 1024 / 1024),
		MemoryUsedMB: int(ms.Alloc / 1024 / 1024),
	}
}
