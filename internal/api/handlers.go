package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alexconrey/webmux/internal/config"
	"github.com/alexconrey/webmux/internal/httputil"
)

// ConnectionListItem is one entry in the connection list response.
type ConnectionListItem struct {
	Name string `json:"name"`
}

// ConnectionInfo is the connection descriptor response. Data bits and stop
// bits render as strings and parity as a capitalized label; clients depend
// on these shapes.
type ConnectionInfo struct {
	Name     string `json:"name"`
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
	DataBits string `json:"data_bits"`
	StopBits string `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// SendDataRequest is the body of a send request. Format defaults to text.
type SendDataRequest struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteText(w, http.StatusOK, "OK")
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	content, err := s.fs.ReadFile(filepath.Join(s.staticDir, "index.html"))
	if err != nil {
		httputil.WriteText(w, http.StatusNotFound, "Frontend not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	names := s.registry.List()
	sort.Strings(names)

	items := make([]ConnectionListItem, 0, len(names))
	for _, name := range names {
		items = append(items, ConnectionListItem{Name: name})
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) getConnectionInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	sess, ok := s.registry.Get(name)
	if !ok {
		// An unknown name answers with zero-valued fields rather than
		// an error; clients probe for existence this way.
		httputil.WriteJSON(w, http.StatusOK, ConnectionInfo{Name: name})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, connectionInfo(sess.Config()))
}

func connectionInfo(cfg config.Connection) ConnectionInfo {
	return ConnectionInfo{
		Name:     cfg.Name,
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: strconv.Itoa(cfg.DataBits),
		StopBits: strconv.Itoa(cfg.StopBits),
		Parity:   parityLabel(cfg.Parity),
	}
}

func parityLabel(parity string) string {
	switch parity {
	case "none":
		return "None"
	case "odd":
		return "Odd"
	case "even":
		return "Even"
	default:
		return parity
	}
}

func (s *Server) sendData(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SendDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to parse request body: %v", err))
		return
	}

	data, err := DecodePayload(req.Data, req.Format)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	sess, ok := s.registry.Get(name)
	if !ok {
		httputil.InternalServerError(w, fmt.Sprintf("Connection not found: %s", name))
		return
	}

	if err := sess.Send(r.Context(), data); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	httputil.WriteText(w, http.StatusOK, "Data sent")
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	sess, ok := s.registry.Get(name)
	if !ok {
		httputil.InternalServerError(w, fmt.Sprintf("Connection not found: %s", name))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sess.Stats())
}
