package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markalston/diego-auth/internal/security/secretbox"
	"github.com/markalston/diego-auth/internal/security/token"
)

// RedisStore implementa Store sobre Redis. Los records van como JSON con TTL
// nativo de Redis (la evicción la hace Redis); el refresh token se cifra con
// secretbox antes de tocar la red.
//
// La serialización de Update/Delete es por proceso (mutex local por key): este
// subsistema corre single-node por diseño, Redis es durabilidad entre
// restarts, no coordinación multi-nodo.
type RedisStore struct {
	client *redis.Client
	prefix string
	grace  time.Duration
	box    *secretbox.Box // nil => refresh tokens en claro (sólo dev)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// RedisOptions configura el RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Grace    time.Duration  // igual que MemoryOptions.Grace
	Box      *secretbox.Box // opcional
}

// NewRedisStore crea el store y verifica la conexión.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis ping failed: %w", err)
	}

	if opts.Prefix == "" {
		opts.Prefix = "diego"
	}
	if opts.Grace == 0 {
		opts.Grace = 10 * time.Minute
	}
	if opts.Grace < 0 {
		opts.Grace = 0
	}
	return &RedisStore{
		client: rdb,
		prefix: opts.Prefix,
		grace:  opts.Grace,
		box:    opts.Box,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Close cierra la conexión.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(id string) string { return s.prefix + ":session:" + id }

func (s *RedisStore) Create(ctx context.Context, rec Record) (string, error) {
	for {
		id, err := token.GenerateOpaque(sessionIDBytes)
		if err != nil {
			return "", err
		}
		rec.SessionID = id

		b, err := s.marshal(rec)
		if err != nil {
			return "", err
		}
		// SETNX garantiza no pisar una sesión viva con el mismo ID
		ok, err := s.client.SetNX(ctx, s.key(id), b, s.ttl(rec)).Result()
		if err != nil {
			return "", fmt.Errorf("session: redis setnx: %w", err)
		}
		if ok {
			return id, nil
		}
	}
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Record, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		s.dropLock(sessionID)
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: redis get: %w", err)
	}
	rec, err := s.unmarshal([]byte(raw))
	if err != nil {
		return Record{}, err
	}
	if time.Now().After(rec.ExpiresAt.Add(s.grace)) {
		// el TTL de Redis ya la tiene sentenciada; borramos sin esperar
		_ = s.client.Del(ctx, s.key(sessionID)).Err()
		s.dropLock(sessionID)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) Update(ctx context.Context, sessionID string, mutate func(*Record) error) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	id, csrf := rec.SessionID, rec.CSRFToken
	if err := mutate(&rec); err != nil {
		return err
	}
	rec.SessionID = id
	rec.CSRFToken = csrf

	b, err := s.marshal(rec)
	if err != nil {
		return err
	}
	// XX: escribir sólo si la key sigue viva. Si un logout o el TTL la
	// borraron mientras mutate corría, el resultado se descarta en vez de
	// resucitar la sesión con TTL fresco.
	ok, err := s.client.SetXX(ctx, s.key(sessionID), b, s.ttl(rec)).Result()
	if err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	if !ok {
		s.dropLock(sessionID)
		return ErrNotFound
	}
	return nil
}

// Delete toma el lock del registro: un logout que compite con un refresh en
// vuelo espera a que el Update termine y recién ahí borra.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	s.dropLock(sessionID)
	return nil
}

// ttl calcula el TTL de Redis: hasta ExpiresAt + grace, mínimo 1m para que un
// refresh en curso no pierda la key debajo.
func (s *RedisStore) ttl(rec Record) time.Duration {
	ttl := time.Until(rec.ExpiresAt) + s.grace
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func (s *RedisStore) marshal(rec Record) ([]byte, error) {
	if s.box != nil && rec.RefreshToken != "" {
		enc, err := s.box.Encrypt(rec.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("session: encrypt refresh token: %w", err)
		}
		rec.RefreshToken = enc
	}
	return json.Marshal(rec)
}

func (s *RedisStore) unmarshal(b []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("session: decode record: %w", err)
	}
	if s.box != nil && rec.RefreshToken != "" {
		dec, err := s.box.Decrypt(rec.RefreshToken)
		if err != nil {
			return Record{}, fmt.Errorf("session: decrypt refresh token: %w", err)
		}
		rec.RefreshToken = dec
	}
	return rec, nil
}

func (s *RedisStore) lockFor(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

func (s *RedisStore) dropLock(sessionID string) {
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()
}
