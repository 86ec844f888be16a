// Package commands is the catalog of OCI entities this client knows how
// to encode and decode: the authentication handshake, the generic
// success/error envelopes every response classifies into, and a small
// set of sample data commands exercising the table, composite and
// repeated-composite field shapes. NewRegistry installs every descriptor the catalog defines;
// callers needing only a subset can build their own registry by hand
// with registry.New and Descriptors.
package commands

import (
	"reflect"
	"sync"

	"brdwrks.dev/oci/codec"
	"brdwrks.dev/oci/registry"
)

// AuthenticationRequest opens the handshake: the userId identifies the
// account being authenticated, nothing else is sent until the server
// has issued a nonce.
type AuthenticationRequest struct {
	UserID string
}

// AuthenticationResponse carries the nonce the client must fold into
// the signed password, plus the algorithm the server expects it hashed
// with (only "MD5" is understood by this client).
type AuthenticationResponse struct {
	Nonce             string
	PasswordAlgorithm string
}

// LoginRequest22V5 completes the handshake over a TLS-protected
// transport.
type LoginRequest22V5 struct {
	UserID         string
	SignedPassword string
}

// LoginResponse22V5 acknowledges a successful LoginRequest22V5.
type LoginResponse22V5 struct{}

// LoginRequest14sp4 completes the handshake over a plaintext transport.
type LoginRequest14sp4 struct {
	UserID         string
	SignedPassword string
}

// LoginResponse14sp4 acknowledges a successful LoginRequest14sp4.
type LoginResponse14sp4 struct{}

// ErrorResponse is returned by the server in place of the requested
// response whenever a command could not be carried out.
type ErrorResponse struct {
	Summary string
	Detail  string
}

// SuccessResponse is returned in place of a data response when a
// command succeeds without producing one.
type SuccessResponse struct{}

// UserGetRegistrationListRequest22 asks for a user's registered device
// endpoints.
type UserGetRegistrationListRequest22 struct {
	UserID string
}

// UserGetRegistrationListResponse22 carries one row per registered
// device, shaped as a table so a caller walking it generically (via
// codec.ToDict) sees the same column names the wire does.
type UserGetRegistrationListResponse22 struct {
	UserID            string
	RegistrationTable codec.Table
}

// ServicePackAssignment is one row of a ReplacementServicePackAssignmentList.
type ServicePackAssignment struct {
	ServicePackName    string
	AuthorizedQuantity int
}

// ReplacementServicePackAssignmentList replaces a user's full set of
// assigned service packs.
type ReplacementServicePackAssignmentList struct {
	ServicePack []ServicePackAssignment
}

// UserConsolidatedModifyRequest22 applies a consolidated set of changes
// to a user, including (optionally) a full service pack replacement.
type UserConsolidatedModifyRequest22 struct {
	UserID          string
	ServicePackList *ReplacementServicePackAssignmentList
}

var (
	authRequestDescriptor = registry.Descriptor{
		Tag:    "AuthenticationRequest",
		Kind:   registry.KindRequest,
		GoType: reflect.TypeOf(AuthenticationRequest{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar, Required: true},
		},
	}
	authResponseDescriptor = registry.Descriptor{
		Tag:    "AuthenticationResponse",
		Kind:   registry.KindDataResponse,
		GoType: reflect.TypeOf(AuthenticationResponse{}),
		Fields: []registry.Field{
			{GoName: "Nonce", WireName: "nonce", Kind: registry.Scalar},
			{GoName: "PasswordAlgorithm", WireName: "passwordAlgorithm", Kind: registry.Scalar},
		},
	}
	login22Descriptor = registry.Descriptor{
		Tag:    "LoginRequest22V5",
		Kind:   registry.KindRequest,
		GoType: reflect.TypeOf(LoginRequest22V5{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar, Required: true},
			{GoName: "SignedPassword", WireName: "signedPassword", Kind: registry.Scalar, Required: true},
		},
	}
	login22ResponseDescriptor = registry.Descriptor{
		Tag:    "LoginResponse22V5",
		Kind:   registry.KindSuccessResponse,
		GoType: reflect.TypeOf(LoginResponse22V5{}),
	}
	login14Descriptor = registry.Descriptor{
		Tag:    "LoginRequest14sp4",
		Kind:   registry.KindRequest,
		GoType: reflect.TypeOf(LoginRequest14sp4{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar, Required: true},
			{GoName: "SignedPassword", WireName: "signedPassword", Kind: registry.Scalar, Required: true},
		},
	}
	login14ResponseDescriptor = registry.Descriptor{
		Tag:    "LoginResponse14sp4",
		Kind:   registry.KindSuccessResponse,
		GoType: reflect.TypeOf(LoginResponse14sp4{}),
	}
	errorResponseDescriptor = registry.Descriptor{
		Tag:    "ErrorResponse",
		Kind:   registry.KindErrorResponse,
		GoType: reflect.TypeOf(ErrorResponse{}),
		Fields: []registry.Field{
			{GoName: "Summary", WireName: "summary", Kind: registry.Scalar},
			{GoName: "Detail", WireName: "detail", Kind: registry.Scalar},
		},
	}
	successResponseDescriptor = registry.Descriptor{
		Tag:    "SuccessResponse",
		Kind:   registry.KindSuccessResponse,
		GoType: reflect.TypeOf(SuccessResponse{}),
	}
	servicePackAssignmentDescriptor = registry.Descriptor{
		Tag:    "ServicePackAssignment",
		Kind:   registry.KindType,
		GoType: reflect.TypeOf(ServicePackAssignment{}),
		Fields: []registry.Field{
			{GoName: "ServicePackName", WireName: "servicePackName", Kind: registry.Scalar},
			{GoName: "AuthorizedQuantity", WireName: "authorizedQuantity", Kind: registry.Scalar},
		},
	}
	servicePackListDescriptor = registry.Descriptor{
		Tag:    "ReplacementServicePackAssignmentList",
		Kind:   registry.KindType,
		GoType: reflect.TypeOf(ReplacementServicePackAssignmentList{}),
		Fields: []registry.Field{
			{GoName: "ServicePack", WireName: "servicePack", Kind: registry.Composite, Repeated: true, Elem: &servicePackAssignmentDescriptor},
		},
	}
	consolidatedModifyDescriptor = registry.Descriptor{
		Tag:    "UserConsolidatedModifyRequest22",
		Kind:   registry.KindRequest,
		GoType: reflect.TypeOf(UserConsolidatedModifyRequest22{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar, Required: true},
			{GoName: "ServicePackList", WireName: "servicePackList", Kind: registry.Composite, Elem: &servicePackListDescriptor},
		},
	}
	registrationListRequestDescriptor = registry.Descriptor{
		Tag:    "UserGetRegistrationListRequest22",
		Kind:   registry.KindRequest,
		GoType: reflect.TypeOf(UserGetRegistrationListRequest22{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar, Required: true},
		},
	}
	registrationListResponseDescriptor = registry.Descriptor{
		Tag:    "UserGetRegistrationListResponse22",
		Kind:   registry.KindDataResponse,
		GoType: reflect.TypeOf(UserGetRegistrationListResponse22{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar},
			{GoName: "RegistrationTable", WireName: "registrationTable", Kind: registry.TableField},
		},
	}
)

// Descriptors is the full catalog, in no particular order.
var Descriptors = []registry.Descriptor{
	authRequestDescriptor,
	authResponseDescriptor,
	login22Descriptor,
	login22ResponseDescriptor,
	login14Descriptor,
	login14ResponseDescriptor,
	errorResponseDescriptor,
	successResponseDescriptor,
	servicePackAssignmentDescriptor,
	servicePackListDescriptor,
	consolidatedModifyDescriptor,
	registrationListRequestDescriptor,
	registrationListResponseDescriptor,
}

// NewRegistry builds a registry.Registry containing every descriptor in
// this catalog.
func NewRegistry() *registry.Registry {
	return registry.New(Descriptors...)
}

// Default returns the process-wide registry built from this catalog,
// constructing it on first use.
var Default = sync.OnceValue(NewRegistry)

// Resolve returns the highest registered version of base (e.g.
// "UserGetRegistrationListRequest" resolves to
// "UserGetRegistrationListRequest22" today, and to a 23 or later
// revision once one joins the catalog).
func Resolve(base string) (tag string, ok bool) {
	d, ok := Default().HighestVersion(base)
	if !ok {
		return "", false
	}
	return d.Tag, true
}
