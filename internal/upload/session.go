package upload

import (
	"context"
	"sync"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// State is a point-in-time copy of a Session.
type State struct {
	InProgress bool   `json:"inProgress"`
	Percent    int    `json:"percent"`
	Message    string `json:"message,omitempty"`
}

// Session owns the form of one submitter. It refuses a second submission while
// one is running and clears the form after a success.
type Session struct {
	workflow *Workflow

	mu    sync.Mutex
	form  Form
	state State
}

// NewSession starts an empty session.
func NewSession(w *Workflow) *Session {
	return &Session{workflow: w}
}

// SetForm replaces the pending form.
func (s *Session) SetForm(f Form) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = f
}

// Form returns the pending form.
func (s *Session) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// State returns the current progress and message.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit runs the workflow on the pending form. onProgress, if set, sees every
// update after the session state has been refreshed.
func (s *Session) Submit(ctx context.Context, onProgress ProgressFunc) (*model.UploadRecord, error) {
	return s.submit(ctx, nil, onProgress)
}

// SubmitForm replaces the pending form and submits it. A busy session keeps
// the form of the running submission.
func (s *Session) SubmitForm(ctx context.Context, f Form, onProgress ProgressFunc) (*model.UploadRecord, error) {
	return s.submit(ctx, &f, onProgress)
}

func (s *Session) submit(ctx context.Context, replace *Form, onProgress ProgressFunc) (*model.UploadRecord, error) {
	s.mu.Lock()
	if s.state.InProgress {
		s.mu.Unlock()
		return nil, model.WrapError(model.ErrInFlight, "submit", errBusy)
	}
	if replace != nil {
		s.form = *replace
	}
	form := s.form
	s.state = State{InProgress: true}
	s.mu.Unlock()

	rec, err := s.workflow.Submit(ctx, form, func(p Progress) {
		s.mu.Lock()
		s.state.Percent = p.Percent
		s.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.InProgress = false
	s.state.Message = model.UploadMessage(err)
	if err == nil {
		s.form = Form{}
		s.state.Percent = 0
	}
	return rec, err
}
