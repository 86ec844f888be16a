// Package soap implements OCI's SOAP-over-HTTP transport: each document
// exchange is one HTTP POST carrying the command wrapped in a minimal
// SOAP 1.1 envelope, with the response's Body content handed back as
// the next inbound document.
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/net/html/charset"

	"brdwrks.dev/oci/transport"
)

const envelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"

// HTTPError reports a response from the SOAP endpoint whose status is
// anything other than 200 OK.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("soap: %s: %s", e.Status, e.Body)
}

// Transport POSTs each outbound document to URL as a SOAP request and
// makes the matching response available to the next MsgReader call. It
// satisfies transport.Transport but, unlike the TCP transport, has no
// independent read direction: a MsgReader call only succeeds after a
// prior MsgWriter has been closed.
type Transport struct {
	url    string
	client *http.Client

	mu       sync.Mutex
	response []byte
	hasResp  bool
}

// NewTransport returns a Transport that POSTs to url using client. If
// client is nil, http.DefaultClient is used.
func NewTransport(url string, client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{url: url, client: client}
}

type soapWriter struct {
	t   *Transport
	ctx context.Context
	buf bytes.Buffer
}

// MsgWriter returns a writer that, once closed, performs the HTTP round
// trip and buffers the response body for the next MsgReader call.
func (t *Transport) MsgWriter() (io.WriteCloser, error) {
	return &soapWriter{t: t, ctx: context.Background()}, nil
}

// MsgWriterContext is like MsgWriter but binds the eventual HTTP
// request to ctx.
func (t *Transport) MsgWriterContext(ctx context.Context) (io.WriteCloser, error) {
	return &soapWriter{t: t, ctx: ctx}, nil
}

func (w *soapWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *soapWriter) Close() error {
	envelope := buildEnvelope(w.buf.Bytes())

	req, err := http.NewRequestWithContext(w.ctx, http.MethodPost, w.t.url, bytes.NewReader(envelope))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := w.t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	command, err := extractBody(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("soap: parsing response envelope: %w", err)
	}

	w.t.mu.Lock()
	w.t.response = command
	w.t.hasResp = true
	w.t.mu.Unlock()
	return nil
}

// MsgReader returns the response body buffered by the most recent
// MsgWriter. Returns io.EOF if no response is pending.
func (t *Transport) MsgReader() (io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasResp {
		return nil, io.EOF
	}
	body := t.response
	t.hasResp = false
	t.response = nil
	return io.NopCloser(bytes.NewReader(body)), nil
}

// Close is a no-op: the underlying http.Client owns its own connection
// pool and outlives any one Transport.
func (t *Transport) Close() error { return nil }

var _ transport.Transport = (*Transport)(nil)

func buildEnvelope(body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<soapenv:Envelope xmlns:soapenv="`)
	buf.WriteString(envelopeNamespace)
	buf.WriteString(`"><soapenv:Body>`)
	buf.Write(body)
	buf.WriteString(`</soapenv:Body></soapenv:Envelope>`)
	return buf.Bytes()
}

func extractBody(data []byte, contentType string) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Body" {
			continue
		}

		var raw struct {
			Inner []byte `xml:",innerxml"`
		}
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return nil, err
		}
		return bytes.TrimSpace(raw.Inner), nil
	}
}
