// Package scheduler runs the periodic maintenance job that keeps show totals
// in sync with the catalog. The interval comes from settings; a manual run can
// be triggered through the admin API.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"medialog/config"
)

var ErrAlreadyRunning = errors.New("refresh is already running")

// Refresher is the library operation the scheduler drives.
type Refresher interface {
	RefreshActiveShows(ctx context.Context) (int, error)
}

// RunResult records the outcome of the most recent refresh.
type RunResult struct {
	StartedAt time.Time `json:"startedAt"`
	Refreshed int       `json:"refreshed"`
	Error     string    `json:"error,omitempty"`
}

// Service manages the background refresh loop.
type Service struct {
	configManager *config.Manager
	library       Refresher

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stateMu    sync.RWMutex
	refreshing bool
	lastResult *RunResult
}

// NewService creates a scheduler over the settings manager and library.
func NewService(configManager *config.Manager, library Refresher) *Service {
	return &Service{configManager: configManager, library: library}
}

// Start begins the background loop. Calling Start on a running scheduler is a
// no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	settings, err := s.configManager.Load()
	if err != nil {
		return err
	}
	if !settings.Maintenance.RefreshEnabled {
		log.Println("[scheduler] background refresh disabled in settings")
		return nil
	}

	interval := time.Duration(settings.Maintenance.RefreshIntervalHours) * time.Hour
	if interval < time.Hour {
		interval = 12 * time.Hour
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(interval)

	log.Printf("[scheduler] background refresh every %s", interval)
	return nil
}

// Stop cancels the loop and waits for an in-flight refresh, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout waiting for refresh)")
	}

	s.running = false
	return nil
}

func (s *Service) loop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First run shortly after startup rather than a full interval later.
	startup := time.NewTimer(time.Minute)
	defer startup.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-startup.C:
			s.runRefresh(s.ctx)
		case <-ticker.C:
			s.runRefresh(s.ctx)
		}
	}
}

// RunNow triggers an immediate refresh in the background.
func (s *Service) RunNow() error {
	s.stateMu.RLock()
	busy := s.refreshing
	s.stateMu.RUnlock()
	if busy {
		return ErrAlreadyRunning
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRefresh(ctx)
	}()
	return nil
}

// Status returns whether a refresh is in flight and the last completed result.
func (s *Service) Status() (bool, *RunResult) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.lastResult == nil {
		return s.refreshing, nil
	}
	result := *s.lastResult
	return s.refreshing, &result
}

func (s *Service) runRefresh(ctx context.Context) {
	s.stateMu.Lock()
	if s.refreshing {
		s.stateMu.Unlock()
		return
	}
	s.refreshing = true
	s.stateMu.Unlock()

	result := RunResult{StartedAt: time.Now().UTC()}
	refreshed, err := s.library.RefreshActiveShows(ctx)
	result.Refreshed = refreshed
	if err != nil {
		result.Error = err.Error()
		log.Printf("[scheduler] refresh failed after %d show(s): %v", refreshed, err)
	} else {
		log.Printf("[scheduler] refreshed totals for %d show(s)", refreshed)
	}

	s.stateMu.Lock()
	s.refreshing = false
	s.lastResult = &result
	s.stateMu.Unlock()
}
