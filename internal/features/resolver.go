package features

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sentinelops/intel-gateway/pkg/logging"
	"github.com/sentinelops/intel-gateway/pkg/metrics"
)

// Criticality ranks how important a feature is to the gateway
type Criticality string

const (
	CriticalityCritical  Criticality = "critical"
	CriticalityImportant Criticality = "important"
	CriticalityOptional  Criticality = "optional"
)

// Status describes the overall availability tier of the gateway
type Status string

const (
	StatusFullyAvailable     Status = "fully_available"
	StatusMostlyAvailable    Status = "mostly_available"
	StatusPartiallyAvailable Status = "partially_available"
	StatusCriticalOnly       Status = "critical_only"
	StatusUnavailable        Status = "unavailable"
)

// Definition is a statically-defined feature: a named capability whose
// availability depends on zero or more external dependencies being healthy.
// Definitions are fixed at construction and never mutated.
type Definition struct {
	Name         string
	Dependencies []string
	Criticality  Criticality
	Description  string
}

// Availability is the derived per-feature record, recomputed wholesale on
// every health cycle
type Availability struct {
	Available             bool     `json:"available"`
	Reason                string   `json:"reason"`
	UnhealthyDependencies []string `json:"unhealthy_dependencies,omitempty"`
}

// Summary reports the aggregate availability picture
type Summary struct {
	AvailableCount            int     `json:"available_count"`
	TotalCount                int     `json:"total_count"`
	AvailabilityPercentage    float64 `json:"availability_percentage"`
	CriticalFeaturesAvailable bool    `json:"critical_features_available"`
	Status                    Status  `json:"status"`
}

// Thresholds are the availability-percentage boundaries for the status tiers
type Thresholds struct {
	MostlyAvailable    float64
	PartiallyAvailable float64
}

// DefaultThresholds returns the documented tier boundaries
func DefaultThresholds() Thresholds {
	return Thresholds{
		MostlyAvailable:    80,
		PartiallyAvailable: 50,
	}
}

// Resolver translates dependency health into feature availability. It is
// owned by a single orchestrating instance, constructed once at startup —
// there is no package-level registry.
type Resolver struct {
	definitions []Definition
	thresholds  Thresholds
	logger      *logging.Logger
	metrics     *metrics.Metrics

	mutex        sync.RWMutex
	initialized  bool
	availability map[string]Availability
}

// NewResolver creates a resolver over a fixed set of feature definitions
func NewResolver(definitions []Definition, thresholds Thresholds, logger *logging.Logger, m *metrics.Metrics) *Resolver {
	if thresholds.MostlyAvailable <= 0 {
		thresholds.MostlyAvailable = 80
	}
	if thresholds.PartiallyAvailable <= 0 {
		thresholds.PartiallyAvailable = 50
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Resolver{
		definitions:  definitions,
		thresholds:   thresholds,
		logger:       logger,
		metrics:      m,
		availability: make(map[string]Availability),
	}
}

// Initialize recomputes availability for every feature from the snapshot.
// The previous availability map is discarded atomically. A nil or empty
// snapshot marks every dependent feature unavailable rather than failing;
// a panicking health collaborator upstream degrades the same way.
func (r *Resolver) Initialize(snapshot map[string]bool) {
	next := make(map[string]Availability, len(r.definitions))

	for _, def := range r.definitions {
		next[def.Name] = r.compute(def, snapshot)
	}

	r.mutex.Lock()
	r.availability = next
	r.initialized = true
	r.mutex.Unlock()

	for name, avail := range next {
		r.metrics.SetFeatureAvailable(name, avail.Available)
		if !avail.Available {
			r.logger.Warn("Feature unavailable",
				"feature", name,
				"reason", avail.Reason,
			)
		}
	}
}

// MarkAllUnavailable degrades every dependent feature to unavailable. The
// gateway calls it when health monitoring stops, so callers never act on a
// stale snapshot.
func (r *Resolver) MarkAllUnavailable(reason string) {
	r.logger.Error("Degrading all dependent features", "reason", reason)
	r.Initialize(nil)
}

func (r *Resolver) compute(def Definition, snapshot map[string]bool) Availability {
	if len(def.Dependencies) == 0 {
		return Availability{
			Available: true,
			Reason:    "No external dependencies",
		}
	}

	var unhealthy []string
	for _, dep := range def.Dependencies {
		if !snapshot[dep] {
			unhealthy = append(unhealthy, dep)
		}
	}

	if len(unhealthy) == 0 {
		return Availability{
			Available: true,
			Reason:    "All dependencies healthy",
		}
	}

	sort.Strings(unhealthy)
	return Availability{
		Available:             false,
		Reason:                fmt.Sprintf("Unhealthy dependencies: %s", strings.Join(unhealthy, ", ")),
		UnhealthyDependencies: unhealthy,
	}
}

// IsAvailable reports whether a feature is currently available. Unknown
// names and an uninitialized resolver return false, not an error.
func (r *Resolver) IsAvailable(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.initialized {
		return false
	}
	avail, ok := r.availability[name]
	return ok && avail.Available
}

// Get returns the derived availability record for a feature
func (r *Resolver) Get(name string) (Availability, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	avail, ok := r.availability[name]
	return avail, ok
}

// AvailableFeatures returns the sorted names of available features
func (r *Resolver) AvailableFeatures() []string {
	return r.filter(true)
}

// UnavailableFeatures returns the sorted names of unavailable features
func (r *Resolver) UnavailableFeatures() []string {
	return r.filter(false)
}

func (r *Resolver) filter(available bool) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var names []string
	for name, avail := range r.availability {
		if avail.Available == available {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AvailableSet returns the available features as a set for catalog filtering
func (r *Resolver) AvailableSet() map[string]bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	set := make(map[string]bool)
	for name, avail := range r.availability {
		if avail.Available {
			set[name] = true
		}
	}
	return set
}

// Definitions returns the static feature definitions
func (r *Resolver) Definitions() []Definition {
	return r.definitions
}

// GetSummary computes the aggregate availability summary and status tier
func (r *Resolver) GetSummary() Summary {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	total := len(r.definitions)
	available := 0
	criticalUp := true

	for _, def := range r.definitions {
		avail, ok := r.availability[def.Name]
		if ok && avail.Available {
			available++
		} else if def.Criticality == CriticalityCritical {
			criticalUp = false
		}
	}

	summary := Summary{
		AvailableCount:            available,
		TotalCount:                total,
		CriticalFeaturesAvailable: criticalUp,
	}

	if total > 0 {
		summary.AvailabilityPercentage = float64(available) / float64(total) * 100
	}

	switch {
	case total > 0 && available == total:
		summary.Status = StatusFullyAvailable
	case summary.AvailabilityPercentage >= r.thresholds.MostlyAvailable:
		summary.Status = StatusMostlyAvailable
	case summary.AvailabilityPercentage >= r.thresholds.PartiallyAvailable:
		summary.Status = StatusPartiallyAvailable
	case criticalUp && available > 0:
		summary.Status = StatusCriticalOnly
	default:
		summary.Status = StatusUnavailable
	}

	return summary
}
