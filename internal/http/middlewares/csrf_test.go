package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/markalston/diego-auth/internal/http/helpers"
)

// csrfRequest arma un request contra el guard montado sobre un handler que
// marca si fue alcanzado.
func csrfRequest(t *testing.T, method, path string, mutate func(*http.Request)) (*httptest.ResponseRecorder, *bool) {
	t.Helper()
	reached := false
	h := WithCSRF()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, &reached
}

func withSession(value string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: helpers.SessionCookieName, Value: value})
	}
}

func TestCSRF_SafeMethodsPass(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		rr, reached := csrfRequest(t, m, "/api/v1/apps", withSession("sid"))
		if !*reached || rr.Code != http.StatusOK {
			t.Fatalf("%s bloqueado: status %d", m, rr.Code)
		}
	}
}

func TestCSRF_PostWithoutHeaderRejected(t *testing.T) {
	rr, reached := csrfRequest(t, http.MethodPost, "/api/v1/apps", func(r *http.Request) {
		withSession("sid")(r)
		r.AddCookie(&http.Cookie{Name: helpers.CSRFCookieName, Value: "tok"})
	})
	if *reached {
		t.Fatal("el handler corrió sin header CSRF")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, esperaba 403", rr.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body no es JSON: %v", err)
	}
	if body["error"] != "CSRF token missing or invalid" {
		t.Fatalf("body = %q", body["error"])
	}
}

func TestCSRF_PostWithoutCookieRejected(t *testing.T) {
	rr, reached := csrfRequest(t, http.MethodPost, "/api/v1/apps", func(r *http.Request) {
		withSession("sid")(r)
		r.Header.Set(helpers.CSRFHeaderName, "tok")
	})
	if *reached || rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, reached = %v", rr.Code, *reached)
	}
}

func TestCSRF_MismatchRejected(t *testing.T) {
	rr, reached := csrfRequest(t, http.MethodPost, "/api/v1/apps", func(r *http.Request) {
		withSession("sid")(r)
		r.AddCookie(&http.Cookie{Name: helpers.CSRFCookieName, Value: "tok-a"})
		r.Header.Set(helpers.CSRFHeaderName, "tok-b")
	})
	if *reached || rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, reached = %v", rr.Code, *reached)
	}
}

func TestCSRF_MatchingPairAccepted(t *testing.T) {
	// el guard es stateless: cookie == header alcanza, sin consultar el store
	rr, reached := csrfRequest(t, http.MethodPost, "/api/v1/apps", func(r *http.Request) {
		withSession("sid")(r)
		r.AddCookie(&http.Cookie{Name: helpers.CSRFCookieName, Value: "cualquier-valor"})
		r.Header.Set(helpers.CSRFHeaderName, "cualquier-valor")
	})
	if !*reached || rr.Code != http.StatusOK {
		t.Fatalf("par válido rechazado: status %d", rr.Code)
	}
}

func TestCSRF_EmptyPairRejected(t *testing.T) {
	// cookie y header vacíos coinciden entre sí pero no son un token
	rr, reached := csrfRequest(t, http.MethodPost, "/api/v1/apps", func(r *http.Request) {
		withSession("sid")(r)
		r.Header.Set(helpers.CSRFHeaderName, "")
	})
	if *reached || rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, reached = %v", rr.Code, *reached)
	}
}

func TestCSRF_LoginPathExempt(t *testing.T) {
	rr, reached := csrfRequest(t, http.MethodPost, "/auth/login", withSession("cookie-vieja"))
	if !*reached || rr.Code != http.StatusOK {
		t.Fatalf("login bloqueado: status %d", rr.Code)
	}
}

func TestCSRF_BearerAuthExempt(t *testing.T) {
	rr, reached := csrfRequest(t, http.MethodPost, "/api/v1/apps", func(r *http.Request) {
		withSession("sid")(r)
		r.Header.Set("Authorization", "Bearer abc")
	})
	if !*reached || rr.Code != http.StatusOK {
		t.Fatalf("request con Bearer bloqueado: status %d", rr.Code)
	}
}

func TestCSRF_NoSessionCookieExempt(t *testing.T) {
	// sin cookie de sesión no hay sesión que forjar
	rr, reached := csrfRequest(t, http.MethodPost, "/api/v1/apps", nil)
	if !*reached || rr.Code != http.StatusOK {
		t.Fatalf("request sin sesión bloqueado: status %d", rr.Code)
	}
}

func TestCSRF_ExemptionOrder(t *testing.T) {
	want := []string{"safe_method", "login_path", "bearer_auth", "no_session_cookie"}
	if len(exemptions) != len(want) {
		t.Fatalf("exenciones = %d, esperaba %d", len(exemptions), len(want))
	}
	for i, ex := range exemptions {
		if ex.name != want[i] {
			t.Fatalf("exención %d = %q, esperaba %q", i, ex.name, want[i])
		}
	}
}
