// Package listview keeps the most recent upload records in memory and
// projects them into the tabs and rows shown on the page. It never queries
// the store itself; every snapshot from the live subscription replaces the
// whole set.
package listview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/live"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// Category is a filter tab.
type Category string

const (
	CategoryAll     Category = "todos"
	CategoryPending Category = Category(model.StatusPending)
	CategoryPrinted Category = Category(model.StatusPrinted)
	CategoryShipped Category = Category(model.StatusShipped)
)

// DateLayout formats creation dates in the table.
const DateLayout = "02 Jan 2006 15:04"

// EmptyMessage is shown when a filter matches nothing.
const EmptyMessage = "No hay subidas para este filtro."

// ParseCategory maps a query value onto a tab. An empty value selects todos.
func ParseCategory(v string) (Category, error) {
	c := Category(strings.TrimSpace(v))
	switch c {
	case "":
		return CategoryAll, nil
	case CategoryAll, CategoryPending, CategoryPrinted, CategoryShipped:
		return c, nil
	}
	return "", model.WrapError(model.ErrValidation, "parse category", fmt.Errorf("unknown category %q", v))
}

// Counts are the numbers shown next to each tab.
type Counts struct {
	Total   int `json:"todos"`
	Pending int `json:"pendiente"`
	Printed int `json:"impreso"`
	Shipped int `json:"enviado"`
}

// Action is the single status change offered for a record.
type Action struct {
	Target model.Status `json:"target"`
	Label  string       `json:"label"`
}

// Row is one attached file of one record.
type Row struct {
	RecordID    string       `json:"recordId"`
	Product     string       `json:"producto"`
	DisplayName string       `json:"nombre"`
	Quantity    int          `json:"cantidad"`
	Status      model.Status `json:"estado"`
	CreatedAt   string       `json:"fecha"`
	FileIndex   int          `json:"archivo"`
	FileName    string       `json:"name"`
	Size        string       `json:"size"`
	Pages       int          `json:"pages,omitempty"`
	URL         string       `json:"url"`
	Action      *Action      `json:"action,omitempty"`
}

// Page is everything needed to render one tab.
type Page struct {
	Category Category  `json:"categoria"`
	Counts   Counts    `json:"counts"`
	Rows     []Row     `json:"rows"`
	Empty    string    `json:"empty,omitempty"`
	Banner   string    `json:"banner,omitempty"`
	At       time.Time `json:"at"`
}

// View holds the latest snapshot.
type View struct {
	logger   *zap.Logger
	location *time.Location

	mu        sync.RWMutex
	records   []model.UploadRecord
	at        time.Time
	banner    string
	listeners map[chan struct{}]struct{}
}

// New returns an empty view. Dates are rendered in loc, or UTC when nil.
func New(logger *zap.Logger, loc *time.Location) *View {
	if loc == nil {
		loc = time.UTC
	}
	return &View{
		logger:    logger,
		location:  loc,
		listeners: make(map[chan struct{}]struct{}),
	}
}

// Run applies snapshots until the subscription ends or ctx is done. When the
// subscription fails the list is cleared and a banner is kept until the next
// successful snapshot.
func (v *View) Run(ctx context.Context, sub *live.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if err := sub.Err(); err != nil {
					v.Fail(err)
					return err
				}
				return ctx.Err()
			}
			v.Apply(snap)
		}
	}
}

// Apply replaces the whole record set and clears any banner.
func (v *View) Apply(snap live.Snapshot) {
	records := append([]model.UploadRecord(nil), snap.Records...)
	v.mu.Lock()
	v.records = records
	v.at = snap.At
	v.banner = ""
	v.mu.Unlock()
	v.notify()
}

// Fail empties the list and stores the user message for err.
func (v *View) Fail(err error) {
	v.logger.Warn("list view lost its subscription", zap.Error(err))
	v.mu.Lock()
	v.records = nil
	v.at = time.Now().UTC()
	v.banner = model.UserMessage(err)
	v.mu.Unlock()
	v.notify()
}

// Counts tallies the current set using normalized statuses.
func (v *View) Counts() Counts {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return countRecords(v.records)
}

// Filter returns the records in category, newest first.
func (v *View) Filter(category Category) ([]model.UploadRecord, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return filterRecords(v.records, category), nil
}

// Rows expands the records in category into one row per attached file.
func (v *View) Rows(category Category) ([]Row, error) {
	records, err := v.Filter(category)
	if err != nil {
		return nil, err
	}
	return v.expand(records), nil
}

// Banner returns the persistent error message, if any.
func (v *View) Banner() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.banner
}

// Page renders a consistent view of one tab.
func (v *View) Page(category Category) (Page, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return Page{}, err
	}
	if category == "" {
		category = CategoryAll
	}
	v.mu.RLock()
	records := filterRecords(v.records, category)
	p := Page{
		Category: category,
		Counts:   countRecords(v.records),
		Banner:   v.banner,
		At:       v.at,
	}
	v.mu.RUnlock()
	p.Rows = v.expand(records)
	if len(p.Rows) == 0 {
		p.Empty = EmptyMessage
	}
	return p, nil
}

// Watch registers a listener signalled after every new view state. Signals
// coalesce when the listener is slow. Call the returned func to unsubscribe.
func (v *View) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	v.mu.Lock()
	v.listeners[ch] = struct{}{}
	v.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.listeners, ch)
			v.mu.Unlock()
		})
	}
}

func (v *View) notify() {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for ch := range v.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (v *View) expand(records []model.UploadRecord) []Row {
	rows := make([]Row, 0, len(records))
	for i := range records {
		rec := &records[i]
		status := rec.EffectiveStatus()
		action := actionFor(status)
		name := rec.DisplayName
		if name == "" {
			name = "-"
		}
		created := "-"
		if !rec.CreatedAt.IsZero() {
			created = rec.CreatedAt.In(v.location).Format(DateLayout)
		}
		for j, f := range rec.Files {
			rows = append(rows, Row{
				RecordID:    rec.ID,
				Product:     rec.ProductLabel(),
				DisplayName: name,
				Quantity:    rec.Quantity,
				Status:      status,
				CreatedAt:   created,
				FileIndex:   j,
				FileName:    f.Name,
				Size:        f.SizeLabel(),
				Pages:       f.Pages,
				URL:         f.URL,
				Action:      action,
			})
		}
	}
	return rows
}

var actionLabels = map[model.Status]string{
	model.StatusPrinted: "Marcar impreso",
	model.StatusShipped: "Marcar enviado",
}

func actionFor(s model.Status) *Action {
	next, ok := s.Next()
	if !ok {
		return nil
	}
	return &Action{Target: next, Label: actionLabels[next]}
}

func countRecords(records []model.UploadRecord) Counts {
	c := Counts{Total: len(records)}
	for i := range records {
		switch records[i].EffectiveStatus() {
		case model.StatusPending:
			c.Pending++
		case model.StatusPrinted:
			c.Printed++
		case model.StatusShipped:
			c.Shipped++
		}
	}
	return c
}

func filterRecords(records []model.UploadRecord, category Category) []model.UploadRecord {
	out := make([]model.UploadRecord, 0, len(records))
	for i := range records {
		if category == CategoryAll || category == "" || Category(records[i].EffectiveStatus()) == category {
			out = append(out, records[i])
		}
	}
	return out
}
