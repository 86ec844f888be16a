package oci

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// xsiNamespace is bound to the xsi prefix on every BroadsoftDocument
// envelope. The nested command's C:type attribute does not rely on it:
// codec.Encode declares the C prefix on the command element itself.
const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// encodeEnvelope wraps an already-encoded <command> element (as
// produced by codec.Encode) in the <BroadsoftDocument> frame and
// transcodes the whole document to ISO-8859-1, the wire encoding every
// OCI device and application server assumes.
func encodeEnvelope(sessionID string, commandBody []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="ISO-8859-1"?>`)
	buf.WriteString(`<BroadsoftDocument protocol="OCI" xmlns="C" xmlns:xsi="`)
	buf.WriteString(xsiNamespace)
	buf.WriteString(`"><sessionId xmlns="">`)
	xml.EscapeText(&buf, []byte(sessionID)) //nolint:errcheck // bytes.Buffer never errors
	buf.WriteString(`</sessionId>`)
	buf.Write(commandBody)
	buf.WriteString(`</BroadsoftDocument>`)

	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("oci: encoding envelope as ISO-8859-1: %w", err)
	}
	return encoded, nil
}

// decodeEnvelope transcodes a raw ISO-8859-1 BroadsoftDocument back to
// UTF-8 and returns the exact bytes of its nested <command> element
// (start tag, attributes and all), ready for codec.Decode.
func decodeEnvelope(raw []byte) ([]byte, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("oci: decoding ISO-8859-1 envelope: %w", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(decoded))
	// The document's own declaration still names ISO-8859-1 even though
	// decoded is already UTF-8 (we transcoded it above): tell the
	// decoder to accept that label as-is rather than transcode again.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("oci: no <command> element in envelope: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "command" {
			continue
		}
		if err := dec.Skip(); err != nil {
			return nil, fmt.Errorf("oci: malformed <command> element: %w", err)
		}
		end := dec.InputOffset()
		return decoded[start:end], nil
	}
}
