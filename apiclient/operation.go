package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
	"strings"

	errs "github.com/jrsteele09/school-portal/internal/errors"
)

// Operation describes one backend call. Path is relative to the client's
// base endpoint. The client performs no schema validation of Body.
type Operation struct {
	Name      string     // Label used in logs and metrics; defaults to "METHOD path"
	Method    string     // Standard HTTP verb
	Path      string     // e.g. "api/Achivments/get"
	Query     url.Values // Optional query parameters
	Body      any        // JSON-encoded; []byte and json.RawMessage are sent as-is
	Multipart *Multipart // Mutually exclusive with Body
	SkipAuth  bool       // Send without credentials and never refresh (login)
}

// Multipart is a multipart/form-data body.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Content     []byte
}

func (op Operation) name() string {
	if op.Name != "" {
		return op.Name
	}
	return op.Method + " " + op.Path
}

// payload is an encoded request body that can be replayed on retry.
type payload struct {
	contentType string
	data        []byte
}

func (op Operation) encode() (payload, error) {
	if op.Body != nil && op.Multipart != nil {
		return payload{}, errs.Wrapf(errs.ErrInvalidRequest, "%s: body and multipart are exclusive", op.name())
	}

	switch {
	case op.Multipart != nil:
		return op.Multipart.encode()
	case op.Body == nil:
		return payload{}, nil
	}

	switch body := op.Body.(type) {
	case json.RawMessage:
		return payload{contentType: "application/json", data: body}, nil
	case []byte:
		return payload{contentType: "application/json", data: body}, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return payload{}, fmt.Errorf("%s: encode body: %w", op.name(), err)
		}
		return payload{contentType: "application/json", data: data}, nil
	}
}

func (m *Multipart) encode() (payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, m.Fields[name]); err != nil {
			return payload{}, fmt.Errorf("multipart field %s: %w", name, err)
		}
	}

	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(f.FileName)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return payload{}, fmt.Errorf("multipart file %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return payload{}, fmt.Errorf("multipart file %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return payload{}, fmt.Errorf("multipart close: %w", err)
	}
	return payload{contentType: w.FormDataContentType(), data: buf.Bytes()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
