package data

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
)

var ErrNotFound = errors.New("not found")

const MaxHistory = 100

// SimulationRecord is what is kept of a past simulation. The grid itself is
// regenerated on demand from the intervention.
type SimulationRecord struct {
	ID               string                    `json:"id"`
	Prompt           string                    `json:"prompt"`
	Intervention     intervention.Intervention `json:"intervention"`
	CreatedAt        Timestamp                 `json:"created_at"`
	BaselineTotal    float64                   `json:"baseline_total"`
	SimulatedTotal   float64                   `json:"simulated_total"`
	PercentReduction float64                   `json:"percent_reduction"`
}

type historyFile struct {
	Simulations []SimulationRecord `json:"simulations"`
}

// History persists simulation records to a JSON file, oldest first, keeping
// the newest MaxHistory. An empty filename keeps them in memory only.
type History struct {
	filename string
	mutex    sync.Mutex
	memory   []SimulationRecord
}

// NewHistory resolves a relative filename against the working directory.
func NewHistory(filename string) *History {
	if filename != "" {
		if abs, err := filepath.Abs(filename); err == nil {
			filename = abs
		}
	}
	return &History{filename: filename}
}

// Add assigns an ID and creation time when missing and stores the record.
func (h *History) Add(rec SimulationRecord) (SimulationRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.Time().IsZero() {
		rec.CreatedAt = Now()
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.filename == "" {
		h.memory = trim(append(h.memory, rec))
		return rec, nil
	}
	err := JsonUpdateExclusiveLock(h.filename, func(f *historyFile) error {
		f.Simulations = trim(append(f.Simulations, rec))
		return nil
	})
	return rec, err
}

func trim(recs []SimulationRecord) []SimulationRecord {
	if len(recs) > MaxHistory {
		recs = recs[len(recs)-MaxHistory:]
	}
	return recs
}

func (h *History) all() ([]SimulationRecord, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.filename == "" {
		return append([]SimulationRecord(nil), h.memory...), nil
	}
	f, err := JsonReadSharedLock[historyFile](h.filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return f.Simulations, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns everything.
func (h *History) List(limit int) ([]SimulationRecord, error) {
	recs, err := h.all()
	if err != nil {
		return nil, err
	}
	out := make([]SimulationRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, recs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (h *History) Get(id string) (*SimulationRecord, error) {
	recs, err := h.all()
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].ID == id {
			return &recs[i], nil
		}
	}
	return nil, ErrNotFound
}

func (h *History) Count() int {
	recs, err := h.all()
	if err != nil {
		return 0
	}
	return len(recs)
}
