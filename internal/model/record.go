// Package model contains the struct definitions shared by the workflows, the
// stores and the HTTP layer.
package model

import (
	"fmt"
	"time"
)

// Status describes the fulfillment lifecycle of an upload. Values are the ones
// persisted in the "estado" column, so they stay in Spanish.
type Status string

const (
	StatusPending Status = "pendiente"
	StatusPrinted Status = "impreso"
	StatusShipped Status = "enviado"
	// StatusDispatched is a legacy value written by older clients. It is read as
	// StatusShipped and never produced by new transitions.
	StatusDispatched Status = "despachado"
)

// Normalize folds legacy and empty values onto the three visible states.
func (s Status) Normalize() Status {
	switch s {
	case "":
		return StatusPending
	case StatusDispatched:
		return StatusShipped
	}
	return s
}

// Next returns the single forward transition available from s, if any.
func (s Status) Next() (Status, bool) {
	switch s.Normalize() {
	case StatusPending:
		return StatusPrinted, true
	case StatusPrinted:
		return StatusShipped, true
	}
	return "", false
}

// Previous is the inverse of Next for the two reachable targets.
func (s Status) Previous() (Status, bool) {
	switch s {
	case StatusPrinted:
		return StatusPending, true
	case StatusShipped:
		return StatusPrinted, true
	}
	return "", false
}

// FileRef points to one uploaded PDF. The JSON names match the "archivos"
// documents written by the first version of the tool.
type FileRef struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
	// Pages is filled by the inspection worker; zero means not inspected yet.
	Pages int `json:"pages,omitempty"`
}

// SizeLabel renders the size the way the table shows it, e.g. "12.3 KB".
func (f FileRef) SizeLabel() string {
	return fmt.Sprintf("%.1f KB", float64(f.Bytes)/1024)
}

// UploadRecord is one submitted batch of labels.
type UploadRecord struct {
	ID          string `json:"id"`
	Product     string `json:"producto"`
	DisplayName string `json:"nombre"`
	// Kind mirrors Product for records read by older clients.
	Kind         string     `json:"tipo,omitempty"`
	Quantity     int        `json:"cantidad"`
	Files        []FileRef  `json:"archivos"`
	CreatedAt    time.Time  `json:"creadoEn"`
	Status       Status     `json:"estado"`
	PrintedAt    *time.Time `json:"impresoEn"`
	ShippedAt    *time.Time `json:"enviadoEn"`
	DispatchedAt *time.Time `json:"despachadoEn"`
}

// NewUploadRecord builds a record in its initial state. The store assigns ID
// and CreatedAt.
func NewUploadRecord(product, displayName string, quantity int, files []FileRef) *UploadRecord {
	return &UploadRecord{
		Product:     product,
		DisplayName: displayName,
		Kind:        product,
		Quantity:    quantity,
		Files:       files,
		Status:      StatusPending,
	}
}

// ProductLabel falls back to the legacy kind and then to a dash.
func (r *UploadRecord) ProductLabel() string {
	switch {
	case r.Product != "":
		return r.Product
	case r.Kind != "":
		return r.Kind
	}
	return "-"
}

// EffectiveStatus is the normalized status used for display, counts and filters.
func (r *UploadRecord) EffectiveStatus() Status {
	return r.Status.Normalize()
}
