// Package codec implements the symmetric conversion between typed OCI
// entities and their on-wire XML form, plus the dict projection used by
// raw_command-style callers. It walks a registry.Descriptor's field list
// with reflection instead of hand-writing a MarshalXML/UnmarshalXML pair
// per entity — the catalog this is meant to serve is generated from a
// schema, so the codec has to be generic over whatever descriptors the
// registry holds rather than switch over a fixed set of Go types.
package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"brdwrks.dev/oci/naming"
	"brdwrks.dev/oci/registry"
)

// XSINamespace is the namespace of the type-tagging attribute carried on
// every <command> element.
const XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Table is the distinguished composite that appears wherever a field's
// wire name contains the substring "Table": a list of column headings
// followed by a list of rows, each an ordered list of cell strings.
type Table struct {
	Headings []string
	Rows     [][]string
}

// ToDict projects a Table into its canonical dict form: one mapping per
// row, keyed by naming.ToSnake(heading).
func (t Table) ToDict() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Headings))
		for j, h := range t.Headings {
			if j < len(row) {
				m[naming.ToSnake(h)] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

// TableFromDict is the inverse of Table.ToDict, given the original
// (camelCase) headings, which the snake_case dict keys alone cannot
// recover.
func TableFromDict(headings []string, rows []map[string]string) Table {
	t := Table{Headings: headings, Rows: make([][]string, len(rows))}
	for i, row := range rows {
		cells := make([]string, len(headings))
		for j, h := range headings {
			cells[j] = row[naming.ToSnake(h)]
		}
		t.Rows[i] = cells
	}
	return t
}

// Null represents a scalar field's three wire states: omitted
// (Valid == false), explicit-null (Valid && IsNull), and present value
// (Valid && !IsNull, with Value holding the value). Fields registered
// with registry.Field.Nullable == true must use Null[T] as their Go
// field type, where T is one of the supported scalar kinds.
type Null[T any] struct {
	Valid  bool
	IsNull bool
	Value  T
}

// ociNullable is an unexported marker the codec uses to confirm a
// nullable field's Go type is actually a Null[T] before reflecting into
// its fields.
func (Null[T]) ociNullable() {}

type nullMarker interface{ ociNullable() }

// Present wraps v as a present Null[T] value.
func Present[T any](v T) Null[T] { return Null[T]{Valid: true, Value: v} }

// Nil returns an explicit-null Null[T].
func Nil[T any]() Null[T] { return Null[T]{Valid: true, IsNull: true} }

// MalformedWireError indicates the XML document could not be parsed, or
// was parseable but lacked a type attribute where one was required.
type MalformedWireError struct {
	Cause error
}

func (e *MalformedWireError) Error() string {
	return fmt.Sprintf("codec: malformed wire document: %v", e.Cause)
}

func (e *MalformedWireError) Unwrap() error { return e.Cause }

// DecodeError indicates a scalar value on the wire could not be coerced
// to its declared Go type.
type DecodeError struct {
	Field string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decoding field %s: %v", e.Field, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Encode converts entity (using the descriptor registered for its Go
// type) into its standalone <command> XML element, fields emitted in
// declared order, absent fields skipped.
func Encode(reg *registry.Registry, entity any) ([]byte, error) {
	d, err := reg.ByValue(entity)
	if err != nil {
		return nil, err
	}

	v := derefIfPtr(reflect.ValueOf(entity))

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	start := xml.StartElement{
		Name: xml.Name{Local: "command"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: ""},
			{Name: xml.Name{Local: "xmlns:C"}, Value: XSINamespace},
			{Name: xml.Name{Local: "C:type"}, Value: d.Tag},
		},
	}
	if err := enc.EncodeToken(start); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	if err := encodeFields(enc, v, d.Fields); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an on-wire <command> document. If target is non-nil it
// must be a pointer to the Go type the caller expects; otherwise the
// descriptor is resolved from the document's type attribute. Returns the
// decoded entity (== target when target was given).
func Decode(reg *registry.Registry, data []byte, target any) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	start, err := nextStart(dec)
	if err != nil {
		return nil, &MalformedWireError{Cause: err}
	}

	var d *registry.Descriptor
	if target != nil {
		d, err = reg.ByValue(target)
		if err != nil {
			return nil, err
		}
	} else {
		tag, ok := typeAttr(start.Attr)
		if !ok {
			return nil, &MalformedWireError{Cause: fmt.Errorf("missing type attribute")}
		}
		d, err = reg.ByTag(tag)
		if err != nil {
			return nil, err
		}
	}

	entity := target
	if entity == nil {
		entity = d.New()
	}
	v := reflect.ValueOf(entity).Elem()

	if err := decodeFields(dec, start, v, d.Fields); err != nil {
		return nil, &MalformedWireError{Cause: err}
	}
	return entity, nil
}

// DecodeTag peeks the type attribute of an on-wire <command> document
// without decoding its fields.
func DecodeTag(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	start, err := nextStart(dec)
	if err != nil {
		return "", &MalformedWireError{Cause: err}
	}
	tag, ok := typeAttr(start.Attr)
	if !ok {
		return "", &MalformedWireError{Cause: fmt.Errorf("missing type attribute")}
	}
	return tag, nil
}

// ToDict projects entity into its canonical dict form, wrapped under the
// top-level "command" key mirroring the XML root.
func ToDict(reg *registry.Registry, entity any) (map[string]any, error) {
	d, err := reg.ByValue(entity)
	if err != nil {
		return nil, err
	}
	v := derefIfPtr(reflect.ValueOf(entity))
	inner, err := fieldsToDict(v, d.Fields)
	if err != nil {
		return nil, err
	}
	return map[string]any{"command": inner}, nil
}

// FromDict is the inverse of ToDict. data may or may not be wrapped
// under "command"; nested keys are accepted in either camel or snake
// form.
func FromDict(reg *registry.Registry, data map[string]any, tag string) (any, error) {
	d, err := reg.ByTag(tag)
	if err != nil {
		return nil, err
	}

	source := data
	if cmd, ok := data["command"]; ok {
		m, ok := cmd.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("codec: \"command\" value must be a map")
		}
		source = m
	}

	entity := d.New()
	v := reflect.ValueOf(entity).Elem()
	if err := dictToFields(source, v, d.Fields); err != nil {
		return nil, err
	}
	return entity, nil
}

// --- XML encode helpers -----------------------------------------------

func encodeFields(enc *xml.Encoder, v reflect.Value, fields []registry.Field) error {
	for _, f := range fields {
		fv := v.FieldByName(f.GoName)
		if !fv.IsValid() {
			return fmt.Errorf("codec: field %s not found on %s", f.GoName, v.Type())
		}
		if err := encodeField(enc, fv, f); err != nil {
			return fmt.Errorf("codec: encoding field %s: %w", f.WireName, err)
		}
	}
	return nil
}

func encodeField(enc *xml.Encoder, fv reflect.Value, f registry.Field) error {
	switch {
	case f.Kind == registry.TableField:
		return encodeTableField(enc, fv, f)
	case f.Repeated && f.Kind == registry.Composite:
		return encodeRepeatedComposite(enc, fv, f)
	case f.Repeated:
		return encodeRepeatedScalar(enc, fv, f)
	case f.Kind == registry.Composite:
		return encodeCompositeField(enc, fv, f)
	default:
		return encodeScalarField(enc, fv, f)
	}
}

func encodeScalarField(enc *xml.Encoder, fv reflect.Value, f registry.Field) error {
	if f.Nullable {
		return encodeNullableField(enc, fv, f)
	}
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	text, err := scalarText(fv)
	if err != nil {
		return err
	}
	return writeElement(enc, xml.StartElement{Name: xml.Name{Local: f.WireName}}, text, false)
}

func encodeNullableField(enc *xml.Encoder, fv reflect.Value, f registry.Field) error {
	if _, ok := fv.Interface().(nullMarker); !ok {
		return fmt.Errorf("field %s: nullable field must use codec.Null[T]", f.WireName)
	}
	if !fv.FieldByName("Valid").Bool() {
		return nil
	}
	if fv.FieldByName("IsNull").Bool() {
		return writeElement(enc, xml.StartElement{Name: xml.Name{Local: f.WireName}}, "", true)
	}
	text, err := scalarText(fv.FieldByName("Value"))
	if err != nil {
		return err
	}
	return writeElement(enc, xml.StartElement{Name: xml.Name{Local: f.WireName}}, text, false)
}

func encodeRepeatedScalar(enc *xml.Encoder, fv reflect.Value, f registry.Field) error {
	if fv.Kind() != reflect.Slice {
		return fmt.Errorf("field %s: repeated field must be a slice", f.WireName)
	}
	for i := 0; i < fv.Len(); i++ {
		text, err := scalarText(derefIfPtr(fv.Index(i)))
		if err != nil {
			return err
		}
		if err := writeElement(enc, xml.StartElement{Name: xml.Name{Local: f.WireName}}, text, false); err != nil {
			return err
		}
	}
	return nil
}

func encodeRepeatedComposite(enc *xml.Encoder, fv reflect.Value, f registry.Field) error {
	if fv.Kind() != reflect.Slice {
		return fmt.Errorf("field %s: repeated field must be a slice", f.WireName)
	}
	for i := 0; i < fv.Len(); i++ {
		if err := encodeCompositeElem(enc, fv.Index(i), f); err != nil {
			return err
		}
	}
	return nil
}

func encodeCompositeField(enc *xml.Encoder, fv reflect.Value, f registry.Field) error {
	if fv.Kind() == reflect.Ptr && fv.IsNil() {
		return nil
	}
	return encodeCompositeElem(enc, fv, f)
}

func encodeCompositeElem(enc *xml.Encoder, v reflect.Value, f registry.Field) error {
	v = derefIfPtr(v)
	if !v.IsValid() {
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: f.WireName}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeFields(enc, v, f.Elem.Fields); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeTableField(enc *xml.Encoder, fv reflect.Value, f registry.Field) error {
	fv = derefIfPtr(fv)
	if !fv.IsValid() {
		return nil
	}
	table, ok := fv.Interface().(Table)
	if !ok {
		return fmt.Errorf("field %s: table field must be codec.Table", f.WireName)
	}
	if len(table.Headings) == 0 && len(table.Rows) == 0 {
		return nil
	}

	start := xml.StartElement{Name: xml.Name{Local: f.WireName}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, h := range table.Headings {
		if err := writeElement(enc, xml.StartElement{Name: xml.Name{Local: "colHeading"}}, h, false); err != nil {
			return err
		}
	}
	for _, row := range table.Rows {
		rowStart := xml.StartElement{Name: xml.Name{Local: "row"}}
		if err := enc.EncodeToken(rowStart); err != nil {
			return err
		}
		for _, cell := range row {
			if err := writeElement(enc, xml.StartElement{Name: xml.Name{Local: "col"}}, cell, false); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(rowStart.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func writeElement(enc *xml.Encoder, start xml.StartElement, text string, explicitNil bool) error {
	if explicitNil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xsi:nil"}, Value: "true"})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if text != "" {
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// --- XML decode helpers -----------------------------------------------

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return xml.StartElement{}, fmt.Errorf("no start element found")
			}
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func typeAttr(attrs []xml.Attr) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == "type" {
			return a.Value, true
		}
	}
	return "", false
}

func isExplicitNil(start xml.StartElement) bool {
	for _, a := range start.Attr {
		if a.Name.Local == "nil" {
			return strings.EqualFold(a.Value, "true")
		}
	}
	return false
}

func indexFields(fields []registry.Field) map[string]registry.Field {
	idx := make(map[string]registry.Field, len(fields))
	for _, f := range fields {
		idx[f.WireName] = f
	}
	return idx
}

// decodeFields consumes child tokens of an already-opened start element,
// routing each child to its matching field by wire name and returning
// once the matching end element is seen. Unknown children are skipped,
// per the decode policy that missing/extra children are not errors.
func decodeFields(dec *xml.Decoder, start xml.StartElement, v reflect.Value, fields []registry.Field) error {
	byWire := indexFields(fields)
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			f, ok := byWire[t.Name.Local]
			if !ok {
				if err := dec.Skip(); err != nil {
					return err
				}
				continue
			}
			if err := decodeOneField(dec, t, v, f); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

func decodeOneField(dec *xml.Decoder, start xml.StartElement, parent reflect.Value, f registry.Field) error {
	fv := parent.FieldByName(f.GoName)
	if !fv.IsValid() {
		return fmt.Errorf("field %s not found", f.GoName)
	}

	switch {
	case f.Kind == registry.TableField:
		t, err := decodeTable(dec, start)
		if err != nil {
			return err
		}
		return assignTable(fv, t)
	case f.Repeated && f.Kind == registry.Composite:
		ptr := reflect.New(f.Elem.GoType)
		if err := decodeFields(dec, start, ptr.Elem(), f.Elem.Fields); err != nil {
			return err
		}
		appendSliceElem(fv, ptr)
		return nil
	case f.Repeated:
		text, err := readText(dec, start)
		if err != nil {
			return err
		}
		return appendScalarSlice(fv, text)
	case f.Kind == registry.Composite:
		ptr := reflect.New(f.Elem.GoType)
		if err := decodeFields(dec, start, ptr.Elem(), f.Elem.Fields); err != nil {
			return err
		}
		setCompositeSingular(fv, ptr)
		return nil
	default:
		explicitNil := isExplicitNil(start)
		text, err := readText(dec, start)
		if err != nil {
			return err
		}
		if err := assignScalar(fv, f, text, explicitNil); err != nil {
			return &DecodeError{Field: f.WireName, Cause: err}
		}
		return nil
	}
}

func readText(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var holder struct {
		Text string `xml:",chardata"`
	}
	if err := dec.DecodeElement(&holder, &start); err != nil {
		return "", err
	}
	return holder.Text, nil
}

func decodeTable(dec *xml.Decoder, start xml.StartElement) (Table, error) {
	var raw struct {
		Headings []string `xml:"colHeading"`
		Rows     []struct {
			Cols []string `xml:"col"`
		} `xml:"row"`
	}
	if err := dec.DecodeElement(&raw, &start); err != nil {
		return Table{}, err
	}
	t := Table{Headings: raw.Headings, Rows: make([][]string, len(raw.Rows))}
	for i, r := range raw.Rows {
		t.Rows[i] = r.Cols
	}
	return t, nil
}

func assignTable(fv reflect.Value, t Table) error {
	if fv.Kind() == reflect.Ptr {
		fv.Set(reflect.ValueOf(&t))
		return nil
	}
	fv.Set(reflect.ValueOf(t))
	return nil
}

func setCompositeSingular(fv reflect.Value, ptr reflect.Value) {
	if fv.Kind() == reflect.Ptr {
		fv.Set(ptr)
		return
	}
	fv.Set(ptr.Elem())
}

func appendSliceElem(fv reflect.Value, ptr reflect.Value) {
	elemType := fv.Type().Elem()
	var toAppend reflect.Value
	if elemType.Kind() == reflect.Ptr {
		toAppend = ptr
	} else {
		toAppend = ptr.Elem()
	}
	fv.Set(reflect.Append(fv, toAppend))
}

func appendScalarSlice(fv reflect.Value, text string) error {
	elemType := fv.Type().Elem()
	ev := reflect.New(elemType).Elem()
	if err := setScalarText(ev, text); err != nil {
		return err
	}
	fv.Set(reflect.Append(fv, ev))
	return nil
}

func assignScalar(fv reflect.Value, f registry.Field, text string, explicitNil bool) error {
	if f.Nullable {
		if _, ok := fv.Interface().(nullMarker); !ok {
			return fmt.Errorf("field %s: nullable field must use codec.Null[T]", f.WireName)
		}
		fv.FieldByName("Valid").SetBool(true)
		if explicitNil {
			fv.FieldByName("IsNull").SetBool(true)
			return nil
		}
		return setScalarText(fv.FieldByName("Value"), text)
	}
	if fv.Kind() == reflect.Ptr {
		fv.Set(reflect.New(fv.Type().Elem()))
		return setScalarText(fv.Elem(), text)
	}
	return setScalarText(fv, text)
}

// --- scalar <-> text --------------------------------------------------

func scalarText(v reflect.Value) (string, error) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		if v.Bool() {
			return "true", nil
		}
		return "false", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported scalar kind %s", v.Kind())
	}
}

func setScalarText(v reflect.Value, text string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(text)
	case reflect.Bool:
		b, err := parseBool(text)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", text, err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q: %w", text, err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", text, err)
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported scalar kind %s", v.Kind())
	}
	return nil
}

func parseBool(text string) (bool, error) {
	switch strings.ToLower(text) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", text)
	}
}

func derefIfPtr(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// --- dict projection ----------------------------------------------------

func fieldsToDict(v reflect.Value, fields []registry.Field) (map[string]any, error) {
	out := map[string]any{}
	for _, f := range fields {
		fv := v.FieldByName(f.GoName)
		if !fv.IsValid() {
			return nil, fmt.Errorf("codec: field %s not found on %s", f.GoName, v.Type())
		}
		val, present, err := fieldToDictValue(fv, f)
		if err != nil {
			return nil, fmt.Errorf("codec: field %s: %w", f.WireName, err)
		}
		if !present {
			continue
		}
		out[f.WireName] = val
	}
	return out, nil
}

func fieldToDictValue(fv reflect.Value, f registry.Field) (any, bool, error) {
	switch {
	case f.Kind == registry.TableField:
		fv = derefIfPtr(fv)
		if !fv.IsValid() {
			return nil, false, nil
		}
		t, ok := fv.Interface().(Table)
		if !ok {
			return nil, false, fmt.Errorf("table field must be codec.Table")
		}
		if len(t.Headings) == 0 && len(t.Rows) == 0 {
			return nil, false, nil
		}
		return t.ToDict(), true, nil

	case f.Repeated && f.Kind == registry.Composite:
		if fv.Len() == 0 {
			return nil, false, nil
		}
		list := make([]any, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			m, err := fieldsToDict(derefIfPtr(fv.Index(i)), f.Elem.Fields)
			if err != nil {
				return nil, false, err
			}
			list[i] = m
		}
		return list, true, nil

	case f.Repeated:
		if fv.Len() == 0 {
			return nil, false, nil
		}
		list := make([]any, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			list[i] = derefIfPtr(fv.Index(i)).Interface()
		}
		return list, true, nil

	case f.Kind == registry.Composite:
		fv = derefIfPtr(fv)
		if !fv.IsValid() {
			return nil, false, nil
		}
		m, err := fieldsToDict(fv, f.Elem.Fields)
		if err != nil {
			return nil, false, err
		}
		return m, true, nil

	case f.Nullable:
		if _, ok := fv.Interface().(nullMarker); !ok {
			return nil, false, fmt.Errorf("nullable field must use codec.Null[T]")
		}
		if !fv.FieldByName("Valid").Bool() {
			return nil, false, nil
		}
		if fv.FieldByName("IsNull").Bool() {
			return nil, true, nil
		}
		return fv.FieldByName("Value").Interface(), true, nil

	default:
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				return nil, false, nil
			}
			return fv.Elem().Interface(), true, nil
		}
		return fv.Interface(), true, nil
	}
}

func dictToFields(data map[string]any, v reflect.Value, fields []registry.Field) error {
	for _, f := range fields {
		raw, ok := lookupField(data, f.WireName)
		if !ok {
			continue
		}
		fv := v.FieldByName(f.GoName)
		if !fv.IsValid() {
			return fmt.Errorf("codec: field %s not found on %s", f.GoName, v.Type())
		}
		if err := setDictValue(fv, f, raw); err != nil {
			return fmt.Errorf("codec: field %s: %w", f.WireName, err)
		}
	}
	return nil
}

func lookupField(data map[string]any, wireName string) (any, bool) {
	if v, ok := data[wireName]; ok {
		return v, true
	}
	if v, ok := data[naming.ToSnake(wireName)]; ok {
		return v, true
	}
	return nil, false
}

func setDictValue(fv reflect.Value, f registry.Field, raw any) error {
	switch {
	case f.Kind == registry.TableField:
		return setDictTable(fv, raw)

	case f.Repeated && f.Kind == registry.Composite:
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("expected a list")
		}
		elemType := fv.Type().Elem()
		slice := reflect.MakeSlice(fv.Type(), 0, len(items))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("expected a map element")
			}
			ptr := reflect.New(f.Elem.GoType)
			if err := dictToFields(m, ptr.Elem(), f.Elem.Fields); err != nil {
				return err
			}
			if elemType.Kind() == reflect.Ptr {
				slice = reflect.Append(slice, ptr)
			} else {
				slice = reflect.Append(slice, ptr.Elem())
			}
		}
		fv.Set(slice)
		return nil

	case f.Repeated:
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("expected a list")
		}
		elemType := fv.Type().Elem()
		slice := reflect.MakeSlice(fv.Type(), 0, len(items))
		for _, item := range items {
			ev := reflect.New(elemType).Elem()
			if err := setScalarFromAny(ev, item); err != nil {
				return err
			}
			slice = reflect.Append(slice, ev)
		}
		fv.Set(slice)
		return nil

	case f.Kind == registry.Composite:
		m, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("expected a map")
		}
		ptr := reflect.New(f.Elem.GoType)
		if err := dictToFields(m, ptr.Elem(), f.Elem.Fields); err != nil {
			return err
		}
		setCompositeSingular(fv, ptr)
		return nil

	case f.Nullable:
		if _, ok := fv.Interface().(nullMarker); !ok {
			return fmt.Errorf("nullable field must use codec.Null[T]")
		}
		fv.FieldByName("Valid").SetBool(true)
		if raw == nil {
			fv.FieldByName("IsNull").SetBool(true)
			return nil
		}
		return setScalarFromAny(fv.FieldByName("Value"), raw)

	default:
		if fv.Kind() == reflect.Ptr {
			fv.Set(reflect.New(fv.Type().Elem()))
			return setScalarFromAny(fv.Elem(), raw)
		}
		return setScalarFromAny(fv, raw)
	}
}

func setDictTable(fv reflect.Value, raw any) error {
	rowsAny, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("table field must be a list")
	}

	rows := make([]map[string]string, len(rowsAny))
	keySet := map[string]struct{}{}
	for i, ra := range rowsAny {
		rowMap, ok := ra.(map[string]any)
		if !ok {
			return fmt.Errorf("table row must be a map")
		}
		row := make(map[string]string, len(rowMap))
		for k, v := range rowMap {
			row[k] = fmt.Sprintf("%v", v)
			keySet[k] = struct{}{}
		}
		rows[i] = row
	}

	headingKeys := make([]string, 0, len(keySet))
	for k := range keySet {
		headingKeys = append(headingKeys, k)
	}
	sort.Strings(headingKeys)

	headings := make([]string, len(headingKeys))
	for i, k := range headingKeys {
		headings[i] = naming.ToCamel(k)
	}

	t := TableFromDict(headings, rows)
	return assignTable(fv, t)
}

func setScalarFromAny(dst reflect.Value, raw any) error {
	if raw == nil {
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}
	if rv.Kind() != reflect.String && rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}

	var text string
	switch t := raw.(type) {
	case string:
		text = t
	case bool:
		if t {
			text = "true"
		} else {
			text = "false"
		}
	default:
		text = fmt.Sprintf("%v", raw)
	}
	return setScalarText(dst, text)
}
