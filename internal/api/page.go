package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/listview"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type tab struct {
	Key    listview.Category
	Label  string
	Count  int
	Active bool
}

type indexData struct {
	Page       listview.Page
	Tabs       []tab
	MsgCopied  string
	MsgMissing string
	MsgOnlyPDF string
	MsgFailed  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	category, err := listview.ParseCategory(r.URL.Query().Get("estado"))
	if err != nil {
		category = listview.CategoryAll
	}
	page, err := s.deps.View.Page(category)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	data := indexData{
		Page:       page,
		Tabs:       tabsFor(page),
		MsgCopied:  model.MsgLinkCopied,
		MsgMissing: model.MsgMissingFields,
		MsgOnlyPDF: model.MsgOnlyPDF,
		MsgFailed:  model.MsgUploadFailed,
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("render index", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	ensureClientID(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func tabsFor(p listview.Page) []tab {
	tabs := []tab{
		{Key: listview.CategoryAll, Label: "Todos", Count: p.Counts.Total},
		{Key: listview.CategoryPending, Label: "Pendientes", Count: p.Counts.Pending},
		{Key: listview.CategoryPrinted, Label: "Impresos", Count: p.Counts.Printed},
		{Key: listview.CategoryShipped, Label: "Enviados", Count: p.Counts.Shipped},
	}
	for i := range tabs {
		tabs[i].Active = tabs[i].Key == p.Category
	}
	return tabs
}
