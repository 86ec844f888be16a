package codec

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brdwrks.dev/oci/registry"
)

type consolidatedServicePackAssignment struct {
	ServicePackName    string
	AuthorizedQuantity int
}

type replacementConsolidatedServicePackAssignmentList struct {
	ServicePack []consolidatedServicePackAssignment
}

type userConsolidatedModifyRequest22 struct {
	UserID          string
	ServicePackList *replacementConsolidatedServicePackAssignmentList
}

type userGetRegistrationListResponse struct {
	UserID string
	Table  Table
}

type nullableFieldEntity struct {
	Note Null[string]
}

func testRegistry() *registry.Registry {
	assignmentDescriptor := registry.Descriptor{
		Tag:    "ConsolidatedServicePackAssignment",
		Kind:   registry.KindType,
		GoType: reflect.TypeOf(consolidatedServicePackAssignment{}),
		Fields: []registry.Field{
			{GoName: "ServicePackName", WireName: "servicePackName", Kind: registry.Scalar},
			{GoName: "AuthorizedQuantity", WireName: "authorizedQuantity", Kind: registry.Scalar},
		},
	}
	listDescriptor := registry.Descriptor{
		Tag:    "ReplacementConsolidatedServicePackAssignmentList",
		Kind:   registry.KindType,
		GoType: reflect.TypeOf(replacementConsolidatedServicePackAssignmentList{}),
		Fields: []registry.Field{
			{GoName: "ServicePack", WireName: "servicePack", Kind: registry.Composite, Repeated: true, Elem: &assignmentDescriptor},
		},
	}
	requestDescriptor := registry.Descriptor{
		Tag:    "UserConsolidatedModifyRequest22",
		Kind:   registry.KindRequest,
		GoType: reflect.TypeOf(userConsolidatedModifyRequest22{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar, Required: true},
			{GoName: "ServicePackList", WireName: "servicePackList", Kind: registry.Composite, Elem: &listDescriptor},
		},
	}
	tableResponseDescriptor := registry.Descriptor{
		Tag:    "UserGetRegistrationListResponse",
		Kind:   registry.KindDataResponse,
		GoType: reflect.TypeOf(userGetRegistrationListResponse{}),
		Fields: []registry.Field{
			{GoName: "UserID", WireName: "userId", Kind: registry.Scalar},
			{GoName: "Table", WireName: "registrationTable", Kind: registry.TableField},
		},
	}
	nullableDescriptor := registry.Descriptor{
		Tag:    "NullableFieldEntity",
		Kind:   registry.KindType,
		GoType: reflect.TypeOf(nullableFieldEntity{}),
		Fields: []registry.Field{
			{GoName: "Note", WireName: "note", Kind: registry.Scalar, Nullable: true},
		},
	}

	return registry.New(requestDescriptor, tableResponseDescriptor, nullableDescriptor)
}

func TestEncodeConsolidatedModifySample(t *testing.T) {
	r := testRegistry()
	entity := userConsolidatedModifyRequest22{
		UserID: "Test",
		ServicePackList: &replacementConsolidatedServicePackAssignmentList{
			ServicePack: []consolidatedServicePackAssignment{
				{ServicePackName: "ServicePack", AuthorizedQuantity: 1},
				{ServicePackName: "ServicePack2", AuthorizedQuantity: 1},
			},
		},
	}

	data, err := Encode(r, &entity)
	require.NoError(t, err)

	want := `<command xmlns="" xmlns:C="http://www.w3.org/2001/XMLSchema-instance" C:type="UserConsolidatedModifyRequest22">` +
		`<userId>Test</userId>` +
		`<servicePackList>` +
		`<servicePack><servicePackName>ServicePack</servicePackName><authorizedQuantity>1</authorizedQuantity></servicePack>` +
		`<servicePack><servicePackName>ServicePack2</servicePackName><authorizedQuantity>1</authorizedQuantity></servicePack>` +
		`</servicePackList>` +
		`</command>`
	assert.Equal(t, want, string(data))
}

func TestDecodeIsInverseOfEncode(t *testing.T) {
	r := testRegistry()
	entity := &userConsolidatedModifyRequest22{
		UserID: "Test",
		ServicePackList: &replacementConsolidatedServicePackAssignmentList{
			ServicePack: []consolidatedServicePackAssignment{
				{ServicePackName: "ServicePack", AuthorizedQuantity: 1},
				{ServicePackName: "ServicePack2", AuthorizedQuantity: 1},
			},
		},
	}

	data, err := Encode(r, entity)
	require.NoError(t, err)

	decoded, err := Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, entity, decoded)
}

func TestEncodeThenDecodeRoundTripsWithoutTarget(t *testing.T) {
	r := testRegistry()
	original := &userConsolidatedModifyRequest22{UserID: "Abc"}

	data, err := Encode(r, original)
	require.NoError(t, err)

	decoded, err := Decode(r, data, nil)
	require.NoError(t, err)

	reEncoded, err := Encode(r, decoded)
	require.NoError(t, err)
	assert.Equal(t, data, reEncoded)
}

func TestEncodeOmitsAbsentCompositeField(t *testing.T) {
	r := testRegistry()
	entity := &userConsolidatedModifyRequest22{UserID: "Solo"}

	data, err := Encode(r, entity)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "servicePackList")
}

func TestTableRoundTripsThroughEncodeDecode(t *testing.T) {
	r := testRegistry()
	entity := &userGetRegistrationListResponse{
		UserID: "user@example.com",
		Table: Table{
			Headings: []string{"deviceName", "linePort"},
			Rows: [][]string{
				{"Device1", "aa@example.com"},
				{"Device2", "bb@example.com"},
			},
		},
	}

	data, err := Encode(r, entity)
	require.NoError(t, err)

	decoded, err := Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, entity, decoded)
}

func TestTableDictProjectionRoundTrips(t *testing.T) {
	table := Table{
		Headings: []string{"deviceName", "linePort"},
		Rows: [][]string{
			{"Device1", "aa@example.com"},
			{"Device2", "bb@example.com"},
		},
	}

	dict := table.ToDict()
	assert.Equal(t, []map[string]string{
		{"device_name": "Device1", "line_port": "aa@example.com"},
		{"device_name": "Device2", "line_port": "bb@example.com"},
	}, dict)

	rebuilt := TableFromDict(table.Headings, dict)
	assert.Equal(t, table, rebuilt)
}

func TestNullableFieldThreeStates(t *testing.T) {
	r := testRegistry()

	omitted := &nullableFieldEntity{}
	data, err := Encode(r, omitted)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "note")

	explicitNull := &nullableFieldEntity{Note: Nil[string]()}
	data, err = Encode(r, explicitNull)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<note xsi:nil="true"></note>`)

	decoded, err := Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, explicitNull, decoded)

	present := &nullableFieldEntity{Note: Present("hello")}
	data, err = Encode(r, present)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<note>hello</note>")

	decoded, err = Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, present, decoded)
}

func TestToDictAndFromDictRoundTrip(t *testing.T) {
	r := testRegistry()
	entity := &userConsolidatedModifyRequest22{
		UserID: "Test",
		ServicePackList: &replacementConsolidatedServicePackAssignmentList{
			ServicePack: []consolidatedServicePackAssignment{
				{ServicePackName: "ServicePack", AuthorizedQuantity: 1},
			},
		},
	}

	dict, err := ToDict(r, entity)
	require.NoError(t, err)

	rebuilt, err := FromDict(r, dict, "UserConsolidatedModifyRequest22")
	require.NoError(t, err)
	assert.Equal(t, entity, rebuilt)
}

func TestFromDictAcceptsSnakeCaseKeys(t *testing.T) {
	r := testRegistry()
	dict := map[string]any{
		"command": map[string]any{
			"user_id": "SnakeUser",
		},
	}

	rebuilt, err := FromDict(r, dict, "UserConsolidatedModifyRequest22")
	require.NoError(t, err)
	assert.Equal(t, &userConsolidatedModifyRequest22{UserID: "SnakeUser"}, rebuilt)
}

func TestDecodeUnknownTypeReturnsUnknownCommand(t *testing.T) {
	r := testRegistry()
	data := []byte(`<command xmlns="" xmlns:C="http://www.w3.org/2001/XMLSchema-instance" C:type="NoSuchThing"></command>`)

	_, err := Decode(r, data, nil)
	require.Error(t, err)
	var unknown *registry.ErrUnknownCommand
	assert.ErrorAs(t, err, &unknown)
}

func TestDecodeMalformedXMLReturnsMalformedWireError(t *testing.T) {
	r := testRegistry()
	_, err := Decode(r, []byte(`not xml at all`), nil)
	require.Error(t, err)
	var malformed *MalformedWireError
	assert.ErrorAs(t, err, &malformed)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	r := testRegistry()
	data := []byte(`<command xmlns="" xmlns:C="http://www.w3.org/2001/XMLSchema-instance" C:type="UserConsolidatedModifyRequest22">` +
		`<userId>Test</userId><somethingUnexpected><nested>x</nested></somethingUnexpected></command>`)

	decoded, err := Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, &userConsolidatedModifyRequest22{UserID: "Test"}, decoded)
}
