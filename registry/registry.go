// Package registry implements the process-wide, immutable-after-construction
// mapping from an OCI wire type tag (the xsi:type attribute) to the
// descriptor of the entity it identifies. It is the component the codec
// and dispatcher consult to walk a field list without resorting to
// runtime reflection over struct tags scattered across dozens of
// hand-written types.
package registry

import (
	"fmt"
	"reflect"

	"brdwrks.dev/oci/naming"
)

// EntityKind partitions registered entities the way the wire protocol
// does: requests carry input, responses carry (or don't carry) output,
// and Type is a reusable composite with no standalone wire role.
type EntityKind int

const (
	KindType EntityKind = iota
	KindRequest
	KindDataResponse
	KindSuccessResponse
	KindErrorResponse
)

func (k EntityKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindDataResponse:
		return "data-response"
	case KindSuccessResponse:
		return "success-response"
	case KindErrorResponse:
		return "error-response"
	default:
		return "type"
	}
}

// FieldKind identifies the shape a field takes on the wire.
type FieldKind int

const (
	// Scalar fields encode as a single element with text content.
	Scalar FieldKind = iota
	// Composite fields encode as a nested element whose children follow
	// another Descriptor.
	Composite
	// TableField fields encode as the distinguished colHeading/row/col
	// shape used wherever a wire name contains "Table".
	TableField
)

// Field describes one member of an entity, in wire order.
type Field struct {
	// GoName is the exported Go struct field name, used for reflection
	// based get/set.
	GoName string
	// WireName is the element name on the wire (e.g. "userId").
	WireName string
	Kind     FieldKind
	// Repeated marks a field that may appear (or be emitted) as more
	// than one sibling element with the same WireName.
	Repeated bool
	// Elem is the descriptor for Composite/repeated-Composite fields.
	// Nil for Scalar and TableField.
	Elem *Descriptor
	// Required marks fields the schema requires. Neither the codec nor
	// the dispatcher checks it: an absent required field is encoded and
	// decoded like any other absent field.
	Required bool
	// Nullable fields support the three-state omitted/explicit-null/value
	// model; such fields must use codec.Null[T] as their Go type.
	Nullable bool
}

// Descriptor is the immutable schema for one registered entity.
type Descriptor struct {
	// Tag is the wire type tag (xsi:type / the value of the @C:type
	// attribute, and the class name used for lookups).
	Tag string
	// Kind partitions this entity for dispatcher classification.
	Kind EntityKind
	// GoType is the concrete (non-pointer) struct type implementing this
	// entity.
	GoType reflect.Type
	// Fields lists the entity's members in the order they must be
	// emitted on the wire.
	Fields []Field
}

// New allocates a pointer to a zero-value instance of the entity's Go
// type.
func (d *Descriptor) New() any {
	return reflect.New(d.GoType).Interface()
}

// ErrUnknownCommand is returned when a wire type tag has no registered
// descriptor.
type ErrUnknownCommand struct {
	Tag string
}

func (e *ErrUnknownCommand) Error() string {
	return fmt.Sprintf("registry: unknown command %q", e.Tag)
}

// Registry is an immutable map of wire type tag to Descriptor, built
// once via New and thereafter safe to share across any number of
// sessions.
type Registry struct {
	byTag  map[string]*Descriptor
	byType map[reflect.Type]*Descriptor
}

// New builds a Registry from the given descriptors. Panics on a
// duplicate tag or Go type, since that can only happen due to a
// programming error in the (fixed, compile-time) catalog passed in.
func New(descriptors ...Descriptor) *Registry {
	r := &Registry{
		byTag:  make(map[string]*Descriptor, len(descriptors)),
		byType: make(map[reflect.Type]*Descriptor, len(descriptors)),
	}
	for i := range descriptors {
		d := &descriptors[i]
		if _, dup := r.byTag[d.Tag]; dup {
			panic(fmt.Sprintf("registry: duplicate tag %q", d.Tag))
		}
		if _, dup := r.byType[d.GoType]; dup {
			panic(fmt.Sprintf("registry: duplicate go type %s", d.GoType))
		}
		r.byTag[d.Tag] = d
		r.byType[d.GoType] = d
	}
	return r
}

// ByTag resolves a wire type tag to its descriptor.
func (r *Registry) ByTag(tag string) (*Descriptor, error) {
	d, ok := r.byTag[tag]
	if !ok {
		return nil, &ErrUnknownCommand{Tag: tag}
	}
	return d, nil
}

// ByValue resolves an entity value (pointer or struct) to its
// descriptor via its concrete Go type.
func (r *Registry) ByValue(v any) (*Descriptor, error) {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	d, ok := r.byType[t]
	if !ok {
		return nil, &ErrUnknownCommand{Tag: t.Name()}
	}
	return d, nil
}

// Tags returns every registered wire type tag, in no particular order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		tags = append(tags, tag)
	}
	return tags
}

// HighestVersion resolves the highest registered version of base (see
// naming.HighestVersion) and returns its descriptor.
func (r *Registry) HighestVersion(base string) (*Descriptor, bool) {
	tag, ok := naming.HighestVersion(base, r.Tags())
	if !ok {
		return nil, false
	}
	d, err := r.ByTag(tag)
	return d, err == nil
}
