package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/markalston/diego-auth/internal/security/secretbox"
)

func newTestRedisStore(t *testing.T, grace time.Duration, box *secretbox.Box) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisOptions{
		Addr:   mr.Addr(),
		Prefix: "test",
		Grace:  grace,
		Box:    box,
	})
	if err != nil {
		t.Fatalf("NewRedisStore err: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_CreateGet(t *testing.T) {
	s, _ := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	id, err := s.Create(ctx, liveRecord())
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.SessionID != id || got.Username != "admin" || got.RefreshToken != "refresh-1" {
		t.Fatalf("record inesperado: %+v", got)
	}
}

func TestRedisStore_ExpiredIsGone(t *testing.T) {
	s, _ := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	rec := liveRecord()
	rec.ExpiresAt = time.Now().Add(-time.Second)
	id, _ := s.Create(ctx, rec)

	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get expirado = %v, esperaba ErrNotFound", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("segundo Get = %v", err)
	}
}

func TestRedisStore_UpdatePreservesIdentityFields(t *testing.T) {
	s, _ := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	id, _ := s.Create(ctx, liveRecord())

	err := s.Update(ctx, id, func(r *Record) error {
		r.SessionID = "hackeado"
		r.CSRFToken = "hackeado"
		r.AccessToken = "access-2"
		return nil
	})
	if err != nil {
		t.Fatalf("Update err: %v", err)
	}

	got, _ := s.Get(ctx, id)
	if got.SessionID != id || got.CSRFToken != "csrf-1" {
		t.Fatalf("campos inmutables modificados: %+v", got)
	}
	if got.AccessToken != "access-2" {
		t.Fatalf("access token = %q", got.AccessToken)
	}
}

func TestRedisStore_DeleteIdempotent(t *testing.T) {
	s, _ := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	id, _ := s.Create(ctx, liveRecord())
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("segundo Delete err: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get tras Delete = %v", err)
	}
}

// Un logout que compite con un refresh en vuelo no debe perder: pase lo que
// pase con el Update, después del Delete la sesión tiene que estar muerta.
func TestRedisStore_DeleteDuringUpdateWins(t *testing.T) {
	s, _ := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	id, _ := s.Create(ctx, liveRecord())

	entered := make(chan struct{})
	release := make(chan struct{})
	updateDone := make(chan error, 1)

	go func() {
		updateDone <- s.Update(ctx, id, func(r *Record) error {
			close(entered)
			<-release
			r.AccessToken = "a1"
			return nil
		})
	}()

	<-entered

	deleteDone := make(chan error, 1)
	go func() { deleteDone <- s.Delete(ctx, id) }()

	// el Delete tiene que estar esperando el lock del registro, no borrar
	// por debajo del refresh en vuelo
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-updateDone; err != nil && !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update err: %v", err)
	}
	if err := <-deleteDone; err != nil {
		t.Fatalf("Delete err: %v", err)
	}

	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("sesión resucitada tras logout: %v", err)
	}
}

// El resultado de un Update cuya key desapareció (TTL o logout ya completado)
// se descarta: la escritura es condicional, nunca re-crea la key.
func TestRedisStore_UpdateAfterDeleteDoesNotRecreate(t *testing.T) {
	s, mr := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	id, _ := s.Create(ctx, liveRecord())

	err := s.Update(ctx, id, func(r *Record) error {
		// la key muere mientras el mutator corre (simula expiración TTL)
		mr.Del(s.key(id))
		r.AccessToken = "a1"
		return nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update con key muerta = %v, esperaba ErrNotFound", err)
	}
	if mr.Exists(s.key(id)) {
		t.Fatal("el Update re-creó la key borrada")
	}
}

func TestRedisStore_LockMapDoesNotLeak(t *testing.T) {
	s, _ := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	// sesión refrescada y luego muerta por TTL: el Get que la ve expirada
	// debe soltar también su entrada de lock
	rec := liveRecord()
	id, _ := s.Create(ctx, rec)
	_ = s.Update(ctx, id, func(r *Record) error {
		r.ExpiresAt = time.Now().Add(-time.Second)
		return nil
	})
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get = %v", err)
	}

	// sesión borrada por logout
	id2, _ := s.Create(ctx, liveRecord())
	_ = s.Update(ctx, id2, func(r *Record) error { r.AccessToken = "x"; return nil })
	_ = s.Delete(ctx, id2)

	s.mu.Lock()
	n := len(s.locks)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("locks vivos = %d, esperaba 0", n)
	}
}

func TestRedisStore_RefreshTokenEncryptedAtRest(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	box, err := secretbox.New(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatal(err)
	}
	s, mr := newTestRedisStore(t, -1, box)
	ctx := context.Background()

	id, _ := s.Create(ctx, liveRecord())

	raw, err := mr.Get(s.key(id))
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if strings.Contains(raw, "refresh-1") {
		t.Fatal("el refresh token está en claro en redis")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.RefreshToken != "refresh-1" {
		t.Fatalf("refresh token descifrado = %q", got.RefreshToken)
	}
}

func TestRedisStore_ConcurrentUpdatesSerialize(t *testing.T) {
	s, _ := newTestRedisStore(t, -1, nil)
	ctx := context.Background()

	id, _ := s.Create(ctx, liveRecord())

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, id, func(r *Record) error {
				r.AccessToken = r.AccessToken + "x"
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.AccessToken) != len("access-1")+n {
		t.Fatalf("updates perdidos: len=%d", len(got.AccessToken))
	}
}
