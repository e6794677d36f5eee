package api

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/LabelDrop/internal/upload"
)

// clientCookie identifies a browser so its uploads share one session.
const clientCookie = "labeldrop_cliente"

// sessionPool keeps one upload.Session per client while any of its requests
// is running. A second upload from the same client is refused until the
// first one finishes.
type sessionPool struct {
	mu       sync.Mutex
	byClient map[string]*pooledSession
}

type pooledSession struct {
	session *upload.Session
	refs    int
}

func newSessionPool() *sessionPool {
	return &sessionPool{byClient: make(map[string]*pooledSession)}
}

// acquire returns the session of client and a release func. Requests without
// a client id get a private session.
func (p *sessionPool) acquire(client string, w *upload.Workflow) (*upload.Session, func()) {
	if client == "" {
		return upload.NewSession(w), func() {}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ps, ok := p.byClient[client]
	if !ok {
		ps = &pooledSession{session: upload.NewSession(w)}
		p.byClient[client] = ps
	}
	ps.refs++
	var once sync.Once
	return ps.session, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			ps.refs--
			if ps.refs == 0 {
				delete(p.byClient, client)
			}
		})
	}
}

func clientID(r *http.Request) string {
	c, err := r.Cookie(clientCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// ensureClientID hands the browser an id on its first page load.
func ensureClientID(w http.ResponseWriter, r *http.Request) {
	if clientID(r) != "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
