package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/listview"
	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleLive pushes the page for the requested tab on connect and after every
// view change. The client switches tabs by sending {"estado": "..."}.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	category, err := listview.ParseCategory(r.URL.Query().Get("estado"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	metrics.LiveWatchers.Inc()
	defer metrics.LiveWatchers.Dec()

	changes, unsubscribe := s.deps.View.Watch()
	defer unsubscribe()

	tabs := make(chan listview.Category, 1)
	closed := make(chan struct{})
	go s.readTabs(conn, tabs, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := s.pushPage(conn, category); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case category = <-tabs:
		case <-changes:
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		if err := s.pushPage(conn, category); err != nil {
			return
		}
	}
}

func (s *Server) pushPage(conn *websocket.Conn, category listview.Category) error {
	page, err := s.deps.View.Page(category)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(page); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

type tabMessage struct {
	Estado string `json:"estado"`
}

// readTabs owns the read side of conn. Unknown tabs are ignored.
func (s *Server) readTabs(conn *websocket.Conn, tabs chan listview.Category, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg tabMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		category, err := listview.ParseCategory(msg.Estado)
		if err != nil {
			continue
		}
		for sent := false; !sent; {
			select {
			case tabs <- category:
				sent = true
			default:
				select {
				case <-tabs:
				default:
				}
			}
		}
	}
}
