package session

import (
	"context"
	"sync"
	"time"

	"github.com/markalston/diego-auth/internal/metrics"
	"github.com/markalston/diego-auth/internal/observability/logger"
	"github.com/markalston/diego-auth/internal/security/token"
)

// sessionIDBytes: 32 bytes => 256 bits de entropía en el ID opaco.
const sessionIDBytes = 32

// Store es el mapa concurrente sessionID → Record.
//
// El Store es dueño exclusivo del almacenamiento y de la evicción; el Service
// decide cuándo refrescar. Get devuelve una copia: toda mutación pasa por
// Update, que serializa por registro.
type Store interface {
	// Create genera un session ID fresco sin colisión, inserta el record de
	// forma atómica y arranca su reloj de expiración. Devuelve el ID.
	Create(ctx context.Context, rec Record) (string, error)

	// Get devuelve una copia del record si sigue vivo. Una lectura que
	// compite con la evicción resuelve consistente: record completo o
	// ErrNotFound, nunca un valor a medias.
	Get(ctx context.Context, sessionID string) (Record, error)

	// Update aplica mutate bajo el lock del registro. mutate puede bloquear
	// (el refresh hace el exchange contra UAA con el lock tomado) y un
	// segundo caller concurrente espera y observa el resultado del primero.
	// Si mutate devuelve error no se escribe nada.
	Update(ctx context.Context, sessionID string, mutate func(*Record) error) error

	// Delete es idempotente (logout).
	Delete(ctx context.Context, sessionID string) error
}

// =================================================================================
// MEMORY STORE
// =================================================================================

// entry guarda el record con su propio mutex: sesiones distintas nunca
// contienden entre sí.
type entry struct {
	mu  sync.Mutex
	rec Record
}

// MemoryStore implementa Store en memoria de proceso.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// grace: ventana después de ExpiresAt en la que Get todavía devuelve el
	// record para que el Service pueda refrescarlo. Pasada la ventana la
	// sesión es invisible.
	grace time.Duration

	stop chan struct{}
	once sync.Once
}

// MemoryOptions configura el MemoryStore.
type MemoryOptions struct {
	// Grace ventana post-expiración visible para refresh. Default 10m.
	// Negativo => 0 (estricto, útil en tests).
	Grace time.Duration

	// SweepEvery intervalo del barrido de expirados. Default 1m.
	SweepEvery time.Duration
}

// NewMemoryStore crea el store y arranca el barrido de evicción.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.Grace == 0 {
		opts.Grace = 10 * time.Minute
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = time.Minute
	}
	s := &MemoryStore{
		entries: make(map[string]*entry),
		grace:   opts.Grace,
		stop:    make(chan struct{}),
	}
	go s.sweep(opts.SweepEvery)
	return s
}

// Close detiene el barrido. Idempotente.
func (s *MemoryStore) Close() { s.once.Do(func() { close(s.stop) }) }

func (s *MemoryStore) Create(_ context.Context, rec Record) (string, error) {
	for {
		id, err := token.GenerateOpaque(sessionIDBytes)
		if err != nil {
			return "", err
		}

		s.mu.Lock()
		if _, exists := s.entries[id]; exists {
			// 256 bits de entropía: prácticamente imposible, pero el
			// contrato garantiza no-colisión, así que regeneramos.
			s.mu.Unlock()
			continue
		}
		rec.SessionID = id
		s.entries[id] = &entry{rec: rec}
		size := len(s.entries)
		s.mu.Unlock()

		metrics.SessionsLive.Set(float64(size))
		return id, nil
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Record, error) {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}

	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()

	if s.dead(rec, time.Now()) {
		// evicción perezosa en el lookup
		s.remove(sessionID)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Update(_ context.Context, sessionID string, mutate func(*Record) error) error {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s.dead(e.rec, time.Now()) {
		return ErrNotFound
	}

	// mutar sobre una copia: si mutate falla no queda estado a medias
	rec := e.rec
	if err := mutate(&rec); err != nil {
		return err
	}
	rec.SessionID = e.rec.SessionID
	rec.CSRFToken = e.rec.CSRFToken
	e.rec = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.remove(sessionID)
	return nil
}

// dead reporta si el record pasó ExpiresAt + grace.
func (s *MemoryStore) dead(rec Record, now time.Time) bool {
	return now.After(rec.ExpiresAt.Add(s.grace))
}

func (s *MemoryStore) remove(sessionID string) {
	s.mu.Lock()
	delete(s.entries, sessionID)
	size := len(s.entries)
	s.mu.Unlock()
	metrics.SessionsLive.Set(float64(size))
}

// sweep es la evicción activa: complementa la perezosa de Get para que las
// sesiones abandonadas no queden en memoria hasta un lookup casual.
func (s *MemoryStore) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			var dead []string
			s.mu.RLock()
			for id, e := range s.entries {
				e.mu.Lock()
				rec := e.rec
				e.mu.Unlock()
				if s.dead(rec, now) {
					dead = append(dead, id)
				}
			}
			s.mu.RUnlock()

			for _, id := range dead {
				s.remove(id)
			}
			if len(dead) > 0 {
				logger.Named("session").Debug("swept expired sessions", logger.Count(len(dead)))
			}
		}
	}
}
