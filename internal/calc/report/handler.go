package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"Acta/internal/auth"
	"Acta/internal/calc/measure"
	"Acta/internal/calc/protocol"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const MaxUploadSize = 10 << 20 // 10MB

type Handler struct {
	Gen *Generator
	Log *zap.Logger
}

type protocolInfo struct {
	ID            protocol.ID `json:"id"`
	Title         string      `json:"title"`
	SpecimenCount int         `json:"specimen_count"`
	Dimensions    []string    `json:"dimensions"`
	Quantities    []string    `json:"quantities"`
}

// Protocols lists the registry.
func (h *Handler) Protocols(w http.ResponseWriter, r *http.Request) {
	var list []protocolInfo
	for _, id := range protocol.IDs() {
		spec, err := protocol.Resolve(id)
		if err != nil {
			continue
		}
		info := protocolInfo{ID: id, Title: spec.Title, SpecimenCount: spec.SpecimenCount}
		for _, d := range spec.Dimensions {
			info.Dimensions = append(info.Dimensions, d.Name)
		}
		for _, q := range spec.Quantities {
			info.Quantities = append(info.Quantities, q.Name)
		}
		list = append(list, info)
	}
	writeJSON(w, http.StatusOK, list)
}

// Generate takes a multipart form with the "request" JSON field and the
// "source" measurement file.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		http.Error(w, "File too big or not a multipart form", http.StatusBadRequest)
		return
	}

	var req Request
	if err := json.Unmarshal([]byte(r.FormValue("request")), &req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if id, ok := auth.UserID(r.Context()); ok {
		req.Operator = id
	}

	file, header, err := r.FormFile("source")
	if err != nil {
		http.Error(w, "Measurement source required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := h.Gen.Generate(r.Context(), req, Source{Name: header.Filename, Body: file})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Table previews the table for the measurement source in the body.
func (h *Handler) Table(w http.ResponseWriter, r *http.Request) {
	id := protocol.ID(mux.Vars(r)["protocol"])
	name := "source.csv"
	if strings.Contains(r.Header.Get("Content-Type"), "spreadsheetml") {
		name = "source.xlsx"
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	tbl, err := h.Gen.Preview(id, Source{Name: name, Body: r.Body})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tbl)
}

// Download serves a written artifact.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	f, err := ParseFormat(vars["format"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	operator, _ := auth.UserID(r.Context())
	path, err := h.Gen.Path(r.Context(), vars["id"], f, operator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// fail maps pipeline errors onto status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, protocol.ErrUnknownProtocol),
		errors.Is(err, measure.ErrMalformedSource),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, ErrReportNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.logger().Error("report request",
			zap.String("path", r.URL.Path), zap.String("user", auth.UserLogin(r.Context())), zap.Error(err))
		http.Error(w, "Report generation error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) logger() *zap.Logger {
	if h.Log != nil {
		return h.Log
	}
	return zap.NewNop()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
