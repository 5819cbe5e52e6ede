package server

import (
	"net/http"

	"StudySync/logger"
)

// HealthHandler GET /
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("StudySync API is running"))
}

// WebSocketHandler GET /ws，升级后交给 Hub，连接断开时返回
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("[WS] 升级连接失败", logger.ErrorField(err))
		return
	}
	s.hub.ServeConn(r.Context(), conn)
}
