package metrics

import (
	"sort"
	"sync"
	"time"

	"brewble/internal/model"
)

// Store holds the latest reading per device key. Once more than limit
// devices are tracked the least recently updated one is evicted.
type Store struct {
	mu        sync.RWMutex
	byDevice  map[string]model.Reading
	updatedAt map[string]time.Time
	counts    map[string]int64
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 500
	}
	return &Store{
		byDevice:  make(map[string]model.Reading),
		updatedAt: make(map[string]time.Time),
		counts:    make(map[string]int64),
		limit:     limit,
	}
}

func (s *Store) Update(r model.Reading) {
	if r.DeviceKey == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDevice[r.DeviceKey] = r
	s.updatedAt[r.DeviceKey] = time.Now().UTC()
	s.counts[r.DeviceKey]++
	if len(s.byDevice) > s.limit {
		s.evictOldest()
	}
}

// DeviceStatus is the latest reading of a device plus bookkeeping.
type DeviceStatus struct {
	Reading   model.Reading `json:"reading"`
	UpdatedAt time.Time     `json:"updated_at"`
	Readings  int64         `json:"readings"`
}

func (s *Store) Get(deviceKey string) (DeviceStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byDevice[deviceKey]
	if !ok {
		return DeviceStatus{}, false
	}
	return DeviceStatus{Reading: r, UpdatedAt: s.updatedAt[deviceKey], Readings: s.counts[deviceKey]}, true
}

// GetAll returns every tracked device ordered by key.
func (s *Store) GetAll() []DeviceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeviceStatus, 0, len(s.byDevice))
	for key, r := range s.byDevice {
		out = append(out, DeviceStatus{Reading: r, UpdatedAt: s.updatedAt[key], Readings: s.counts[key]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reading.DeviceKey < out[j].Reading.DeviceKey })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDevice)
}

func (s *Store) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, ts := range s.updatedAt {
		if oldestKey == "" || ts.Before(oldest) {
			oldestKey = key
			oldest = ts
		}
	}
	if oldestKey != "" {
		delete(s.byDevice, oldestKey)
		delete(s.updatedAt, oldestKey)
		delete(s.counts, oldestKey)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDevice = make(map[string]model.Reading)
	s.updatedAt = make(map[string]time.Time)
	s.counts = make(map[string]int64)
}
