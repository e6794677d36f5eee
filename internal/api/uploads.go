package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/listview"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/upload"
)

const ndjsonType = "application/x-ndjson"

// uploadEvent is one line of the NDJSON upload stream.
type uploadEvent struct {
	Type     string              `json:"type"`
	Progress *upload.Progress    `json:"progress,omitempty"`
	OK       bool                `json:"ok"`
	Message  string              `json:"message,omitempty"`
	Record   *model.UploadRecord `json:"record,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// Every file may use the full limit; the rest of the body is small fields.
	r.Body = http.MaxBytesReader(w, r.Body, 64*s.deps.MaxFileSize+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondUploadError(w, r, model.WrapError(model.ErrValidation, "multipart", err))
		return
	}
	spooled, err := readForm(mr, s.deps.MaxFileSize)
	if err != nil {
		s.respondUploadError(w, r, err)
		return
	}
	defer spooled.Close()

	session, release := s.sessions.acquire(clientID(r), s.deps.Uploads)
	defer release()

	if !wantsNDJSON(r) {
		rec, err := session.SubmitForm(ctx, spooled.form, nil)
		if err != nil {
			s.respondUploadError(w, r, err)
			return
		}
		respondJSON(w, s.logger, http.StatusCreated, uploadEvent{Type: "result", OK: true, Message: model.MsgUploadDone, Record: rec})
		return
	}

	w.Header().Set("Content-Type", ndjsonType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	send := func(ev uploadEvent) {
		if err := enc.Encode(ev); err != nil {
			s.logger.Debug("upload stream write", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	last := upload.Progress{FileIndex: -1, Percent: -1}
	rec, err := session.SubmitForm(ctx, spooled.form, func(p upload.Progress) {
		if p.FileIndex == last.FileIndex && p.Percent == last.Percent {
			return
		}
		last = p
		send(uploadEvent{Type: "progress", Progress: &p})
	})
	if err != nil && httpStatus(err) >= http.StatusInternalServerError {
		s.logger.Error("upload failed", zap.Error(err))
	}
	send(uploadEvent{Type: "result", OK: err == nil, Message: model.UploadMessage(err), Record: rec})
}

func wantsNDJSON(r *http.Request) bool {
	for _, v := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(v))
		if err == nil && mt == ndjsonType {
			return true
		}
	}
	return false
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	category, err := listview.ParseCategory(r.URL.Query().Get("estado"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	page, err := s.deps.View.Page(category)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, s.logger, http.StatusOK, page)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	target := model.Status(chi.URLParam(r, "estado"))
	if target != model.StatusPrinted && target != model.StatusShipped {
		http.NotFound(w, r)
		return
	}
	if err := s.deps.Statuses.Advance(r.Context(), id, target); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, s.logger, http.StatusOK, map[string]string{"id": id, "estado": string(target)})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	file, err := s.fileOf(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	http.Redirect(w, r, file.URL, http.StatusFound)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	file, err := s.fileOf(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	obj, err := s.deps.Objects.Open(r.Context(), file.Path)
	if err != nil {
		s.respondError(w, r, model.WrapError(model.ErrTransfer, "open object", err))
		return
	}
	defer obj.Close()
	contentType := obj.ContentType
	if contentType == "" {
		contentType = upload.PDFContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if _, err := io.Copy(w, obj); err != nil {
		s.logger.Warn("download interrupted", zap.String("path", file.Path), zap.Error(err))
	}
}

func (s *Server) fileOf(r *http.Request) (model.FileRef, error) {
	id := chi.URLParam(r, "id")
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 {
		return model.FileRef{}, model.WrapError(model.ErrNotFound, "file index", fmt.Errorf("bad index %q", chi.URLParam(r, "n")))
	}
	rec, err := s.deps.Records.Get(r.Context(), id)
	if err != nil {
		return model.FileRef{}, err
	}
	if n >= len(rec.Files) {
		return model.FileRef{}, model.WrapError(model.ErrNotFound, "file index", fmt.Errorf("record %s has %d files", id, len(rec.Files)))
	}
	return rec.Files[n], nil
}
