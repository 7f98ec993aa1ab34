package watch

import (
	"context"
	"sync"
	"time"

	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/storage"
)

// Store holds the client-side session list and owns one poller per
// in-flight session. All pollers are torn down together with StopAll, so a
// view's teardown cannot leak timers or network calls.
type Store struct {
	client *Client
	cfg    Config
	log    *logger.Logger

	mu       sync.Mutex
	sessions []SessionView
	pollers  map[string]*poller

	wg sync.WaitGroup
}

// poller is the registry handle for one session's polling goroutine.
type poller struct {
	sessionID string
	stop      chan struct{}
	stopOnce  sync.Once
	failures  int
}

func (p *poller) cancel() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// NewStore creates a session store polling through the given client.
func NewStore(client *Client, cfg Config, log *logger.Logger) *Store {
	cfg.ApplyDefaults()
	return &Store{
		client:  client,
		cfg:     cfg,
		log:     log.WithComponent("watch"),
		pollers: make(map[string]*poller),
	}
}

// Load fetches the full session list and starts a poller for every session
// still processing.
func (s *Store) Load(ctx context.Context) error {
	sessions, err := s.client.ListSessions(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions = sessions
	s.mu.Unlock()

	for _, sess := range sessions {
		if sess.Status == storage.StatusProcessing {
			s.startPolling(sess.ID)
		}
	}
	return nil
}

// Track adds a newly created session to the store and, if it is processing,
// starts its poller immediately.
func (s *Store) Track(sess SessionView) {
	s.mu.Lock()
	s.sessions = append([]SessionView{sess}, s.sessions...)
	s.mu.Unlock()

	if sess.Status == storage.StatusProcessing {
		s.startPolling(sess.ID)
	}
}

// Sessions returns a snapshot of the current session list.
func (s *Store) Sessions() []SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionView, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Polling reports whether a poller is currently registered for the session.
func (s *Store) Polling(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pollers[sessionID]
	return ok
}

// StopAll cancels every poller and waits for them to exit. Idempotent.
func (s *Store) StopAll() {
	s.mu.Lock()
	for _, p := range s.pollers {
		p.cancel()
	}
	s.pollers = make(map[string]*poller)
	s.mu.Unlock()

	s.wg.Wait()
}

// startPolling registers a poller for the session unless one already exists.
func (s *Store) startPolling(sessionID string) {
	s.mu.Lock()
	if _, exists := s.pollers[sessionID]; exists {
		s.mu.Unlock()
		return
	}
	p := &poller{
		sessionID: sessionID,
		stop:      make(chan struct{}),
	}
	s.pollers[sessionID] = p
	s.mu.Unlock()

	s.wg.Add(1)
	go s.poll(p)
}

// stopPolling removes the poller from the registry and cancels it. Only the
// registered handle is removed, so a stale poller cannot unregister its
// replacement.
func (s *Store) stopPolling(p *poller) {
	s.mu.Lock()
	if current, ok := s.pollers[p.sessionID]; ok && current == p {
		delete(s.pollers, p.sessionID)
	}
	s.mu.Unlock()
	p.cancel()
}

// poll runs one session's polling loop until a terminal status, the failure
// threshold, or cancellation.
func (s *Store) poll(p *poller) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.interval())
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.requestTimeout())
			sess, err := s.client.SessionStatus(ctx, p.sessionID)
			cancel()

			if err != nil {
				p.failures++
				s.log.Warn("Session poll failed", map[string]interface{}{
					logger.FieldSessionID: p.sessionID,
					"failures":            p.failures,
					"error":               err.Error(),
				})
				if p.failures >= s.cfg.MaxFailures {
					s.markFailedLocally(p)
					s.stopPolling(p)
					return
				}
				continue
			}

			p.failures = 0
			if !s.apply(p, sess) {
				// Poller was cancelled while the request was in flight;
				// drop the stale update.
				return
			}
			if sess.Status != storage.StatusProcessing {
				s.stopPolling(p)
				return
			}
		}
	}
}

// apply replaces the session's fields with the server response. It refuses
// the write when the poller is no longer registered, guarding against a slow
// response arriving after cancellation. Returns whether the update applied.
func (s *Store) apply(p *poller, sess *SessionView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.pollers[p.sessionID]; !ok || current != p {
		return false
	}
	for i := range s.sessions {
		if s.sessions[i].ID == sess.ID {
			s.sessions[i] = *sess
			break
		}
	}
	return true
}

// markFailedLocally flags the session failed in the local list without a
// server confirmation, after the failure threshold is hit.
func (s *Store) markFailedLocally(p *poller) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.pollers[p.sessionID]; !ok || current != p {
		return
	}
	for i := range s.sessions {
		if s.sessions[i].ID == p.sessionID {
			s.sessions[i].Status = storage.StatusFailed
			break
		}
	}
	s.log.Error("Session marked failed after repeated poll failures", map[string]interface{}{
		logger.FieldSessionID: p.sessionID,
		"failures":            p.failures,
	})
}
