package session

import (
	"net/http"
	"strings"
	"time"
)

// Transport resolves the current session id from an HTTP request. Token
// integrity (signing, encryption) is the authentication layer's concern;
// these transports only carry the opaque id.
type Transport interface {
	// GetSID extracts the session id from the request.
	GetSID(r *http.Request) (string, error)

	// SetSID sends the session id in the response.
	SetSID(w http.ResponseWriter, sid string, ttl time.Duration) error

	// ClearSID removes the session id from the response.
	ClearSID(w http.ResponseWriter) error
}

// CookieTransport carries the session id in a plain HTTP cookie.
type CookieTransport struct {
	name   string
	secure bool
}

// NewCookieTransport creates a cookie-based transport.
func NewCookieTransport(name string, secure bool) *CookieTransport {
	return &CookieTransport{name: name, secure: secure}
}

func (t *CookieTransport) GetSID(r *http.Request) (string, error) {
	c, err := r.Cookie(t.name)
	if err != nil || c.Value == "" {
		return "", ErrSessionNotFound
	}
	return c.Value, nil
}

func (t *CookieTransport) SetSID(w http.ResponseWriter, sid string, ttl time.Duration) error {
	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (t *CookieTransport) ClearSID(w http.ResponseWriter) error {
	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// HeaderTransport carries the session id in an HTTP header.
type HeaderTransport struct {
	headerName string
	prefix     string
}

// NewHeaderTransport creates a header-based transport. The default value
// prefix is "Bearer ".
func NewHeaderTransport(headerName string) *HeaderTransport {
	return &HeaderTransport{headerName: headerName, prefix: "Bearer "}
}

func (t *HeaderTransport) GetSID(r *http.Request) (string, error) {
	value := r.Header.Get(t.headerName)
	if value == "" {
		return "", ErrSessionNotFound
	}
	return strings.TrimPrefix(value, t.prefix), nil
}

func (t *HeaderTransport) SetSID(w http.ResponseWriter, sid string, ttl time.Duration) error {
	w.Header().Set(t.headerName, t.prefix+sid)
	return nil
}

func (t *HeaderTransport) ClearSID(w http.ResponseWriter) error {
	w.Header().Del(t.headerName)
	return nil
}
