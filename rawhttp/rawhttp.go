// Package rawhttp renders HTTP traffic as raw text for trace logging.
// Bodies that are JSON, XML or HTML are additionally pretty-printed. Credential headers
// and credential fields of JSON bodies are masked in both renderings.
package rawhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yosssi/gohtml"
)

// redacted replaces the value of sensitive headers in dumps.
const redacted = "[REDACTED]"

// sensitiveHeaders are masked by DumpRequest and DumpResponse.
var sensitiveHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

// sensitiveFields are JSON object keys whose values are masked, matched case-insensitively
// at any depth.
var sensitiveFields = map[string]struct{}{
	"password":      {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"secret":        {},
}

// Dump is the textual rendering of one request or response.
type Dump struct {
	Raw    []byte // Headers followed by the body as sent.
	Pretty string // Headers followed by the prettified body, empty if the body could not be prettified.
}

// String returns the prettified dump when there is one, the raw dump otherwise.
func (d Dump) String() string {
	if d.Pretty != "" {
		return d.Pretty
	}
	return string(d.Raw)
}

// Prettify will attempt to indent a JSON, XML or HTML body.
// It returns an empty slice when the body is none of those.
func Prettify(bodyBytes []byte) ([]byte, error) {
	if len(bodyBytes) == 0 {
		return []byte{}, nil
	}

	trimmedBody := bytes.TrimSpace(bodyBytes)

	var jsonData any
	if err := json.Unmarshal(trimmedBody, &jsonData); err == nil {
		output, err := json.MarshalIndent(jsonData, "", "  ")
		if err != nil {
			return []byte{}, fmt.Errorf("remarshalling JSON: %w", err)
		}
		return output, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(trimmedBody); err == nil && doc.Root() != nil {
		doc.Indent(1)
		var output bytes.Buffer
		if _, err := doc.WriteTo(&output); err != nil {
			return []byte{}, fmt.Errorf("writing indented XML : %w", err)
		}
		return output.Bytes(), nil
	}

	contentType := mimetype.Detect(trimmedBody).String()
	if strings.Contains(contentType, "text/html") ||
		(bytes.HasPrefix(trimmedBody, []byte("<")) && !bytes.HasPrefix(trimmedBody, []byte("<?xml"))) {
		output := gohtml.FormatBytes(trimmedBody)
		if !bytes.Equal(output, trimmedBody) && len(output) > 0 {
			return output, nil
		}
	}

	return []byte{}, nil
}

// DumpRequest dumps req with sensitive headers masked. req is left untouched: the body
// is taken from a fresh copy returned by req.GetBody and omitted when the request has no
// way to replay it.
func DumpRequest(req *http.Request) (Dump, error) {
	bodyBytes, err := replayBody(req)
	if err != nil {
		return Dump{}, fmt.Errorf("reading request body: %w", err)
	}

	masked := req.Clone(req.Context())
	masked.Body = nil
	masked.Header = redact(req.Header)
	head, err := httputil.DumpRequest(masked, false)
	if err != nil {
		return Dump{}, fmt.Errorf("dumping request : %w", err)
	}
	return build(head, bodyBytes), nil
}

// DumpResponse dumps res with sensitive headers masked and restores its body so it can still be read.
func DumpResponse(res *http.Response) (Dump, error) {
	bodyBytes, err := readAndRestore(&res.Body)
	if err != nil {
		return Dump{}, fmt.Errorf("reading response body: %w", err)
	}

	masked := *res
	masked.Body = http.NoBody
	masked.Header = redact(res.Header)
	head, err := httputil.DumpResponse(&masked, false)
	if err != nil {
		return Dump{}, fmt.Errorf("dumping response : %w", err)
	}
	return build(head, bodyBytes), nil
}

func build(head, bodyBytes []byte) Dump {
	bodyBytes = redactBody(bodyBytes)

	raw := make([]byte, 0, len(head)+len(bodyBytes))
	raw = append(raw, head...)
	raw = append(raw, bodyBytes...)

	prettified, err := Prettify(bodyBytes)
	if err != nil || len(prettified) == 0 {
		return Dump{Raw: raw}
	}

	pretty := make([]byte, 0, len(head)+len(prettified))
	pretty = append(pretty, head...)
	pretty = append(pretty, prettified...)
	return Dump{Raw: raw, Pretty: string(pretty)}
}

func replayBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody == nil {
		return []byte{}, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func readAndRestore(body *io.ReadCloser) ([]byte, error) {
	if *body == nil || *body == http.NoBody {
		return []byte{}, nil
	}
	bodyBytes, err := io.ReadAll(*body)
	(*body).Close()
	if err != nil {
		return nil, err
	}
	*body = io.NopCloser(bytes.NewReader(bodyBytes))
	return bodyBytes, nil
}

func redact(header http.Header) http.Header {
	masked := header.Clone()
	for _, name := range sensitiveHeaders {
		if masked.Get(name) != "" {
			masked.Set(name, redacted)
		}
	}
	return masked
}

// redactBody masks sensitiveFields in a JSON body. Anything else is returned unchanged.
func redactBody(bodyBytes []byte) []byte {
	var data any
	if err := json.Unmarshal(bytes.TrimSpace(bodyBytes), &data); err != nil {
		return bodyBytes
	}
	if !redactValue(data) {
		return bodyBytes
	}
	masked, err := json.Marshal(data)
	if err != nil {
		return bodyBytes
	}
	return masked
}

func redactValue(value any) bool {
	changed := false
	switch v := value.(type) {
	case map[string]any:
		for key, field := range v {
			if _, ok := sensitiveFields[strings.ToLower(key)]; ok && field != nil {
				v[key] = redacted
				changed = true
				continue
			}
			if redactValue(field) {
				changed = true
			}
		}
	case []any:
		for _, item := range v {
			if redactValue(item) {
				changed = true
			}
		}
	}
	return changed
}
