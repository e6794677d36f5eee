package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/upload"
)

const maxFieldBytes = 4 << 10

// spooledForm is a parsed upload request whose files sit in temp files until
// the workflow has read them.
type spooledForm struct {
	form  upload.Form
	temps []*os.File
}

func (f *spooledForm) Close() {
	for _, tmp := range f.temps {
		tmp.Close()
		os.Remove(tmp.Name())
	}
}

// readForm consumes a multipart body. Each "archivos" part keeps the content
// type the client declared for it; the workflow decides whether it is a PDF.
func readForm(mr *multipart.Reader, maxFileSize int64) (*spooledForm, error) {
	out := &spooledForm{}
	quantity := ""
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.Close()
			return nil, bodyError("read multipart", err)
		}
		switch part.FormName() {
		case "producto":
			out.form.Product, err = readField(part)
		case "nombre":
			out.form.DisplayName, err = readField(part)
		case "cantidad":
			quantity, err = readField(part)
		case "archivos":
			err = out.spool(part, maxFileSize)
		}
		part.Close()
		if err != nil {
			out.Close()
			return nil, err
		}
	}
	q, err := parseQuantity(quantity)
	if err != nil {
		out.Close()
		return nil, err
	}
	out.form.Quantity = q
	return out, nil
}

func (f *spooledForm) spool(part *multipart.Part, maxFileSize int64) error {
	if part.FileName() == "" {
		return nil
	}
	tmp, err := os.CreateTemp("", "labeldrop-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	f.temps = append(f.temps, tmp)
	written, err := io.Copy(tmp, io.LimitReader(part, maxFileSize+1))
	if err != nil {
		return bodyError("read file", err)
	}
	if written > maxFileSize {
		return model.WrapError(model.ErrTooLarge, "read file",
			fmt.Errorf("%s exceeds limit (%d bytes)", part.FileName(), maxFileSize))
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind temp file: %w", err)
	}
	f.form.Files = append(f.form.Files, upload.File{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        written,
		Reader:      tmp,
	})
	return nil
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", bodyError("read field "+part.FormName(), err)
	}
	return strings.TrimSpace(string(b)), nil
}

// bodyError classifies a failed body read. Hitting the request limit is a
// size problem, anything else a malformed form.
func bodyError(op string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return model.WrapError(model.ErrTooLarge, op, err)
	}
	return model.WrapError(model.ErrValidation, op, err)
}

// parseQuantity treats a missing value as the form's initial 1.
func parseQuantity(v string) (int, error) {
	if v == "" {
		return 1, nil
	}
	q, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.WrapError(model.ErrBadQuantity, "parse quantity", err)
	}
	return q, nil
}
