package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brdwrks.dev/oci/codec"
)

func TestAuthenticationRoundTrips(t *testing.T) {
	r := NewRegistry()

	req := &AuthenticationRequest{UserID: "admin"}
	data, err := codec.Encode(r, req)
	require.NoError(t, err)

	decoded, err := codec.Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestLoginVariantsBothRegistered(t *testing.T) {
	r := NewRegistry()

	for _, req := range []any{
		&LoginRequest22V5{UserID: "admin", SignedPassword: "abc"},
		&LoginRequest14sp4{UserID: "admin", SignedPassword: "abc"},
	} {
		data, err := codec.Encode(r, req)
		require.NoError(t, err)

		decoded, err := codec.Decode(r, data, nil)
		require.NoError(t, err)
		assert.Equal(t, req, decoded)
	}
}

func TestErrorResponseDecodesWithSummaryAndDetail(t *testing.T) {
	r := NewRegistry()

	data := []byte(`<command xmlns="" xmlns:C="http://www.w3.org/2001/XMLSchema-instance" C:type="ErrorResponse">` +
		`<summary>Authentication failure</summary><detail>invalid password</detail></command>`)

	decoded, err := codec.Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, &ErrorResponse{Summary: "Authentication failure", Detail: "invalid password"}, decoded)
}

func TestRegistrationListResponseTableRoundTrips(t *testing.T) {
	r := NewRegistry()

	resp := &UserGetRegistrationListResponse22{
		UserID: "alice@example.com",
		RegistrationTable: codec.Table{
			Headings: []string{"deviceName", "endpointType", "linePort"},
			Rows: [][]string{
				{"deskphone1", "sca", "alice@example.com"},
				{"deskphone2", "sca", "alice@example.com"},
			},
		},
	}

	data, err := codec.Encode(r, resp)
	require.NoError(t, err)

	decoded, err := codec.Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, resp, decoded)
}

func TestConsolidatedModifyRoundTripsWithServicePackList(t *testing.T) {
	r := NewRegistry()

	req := &UserConsolidatedModifyRequest22{
		UserID: "alice@example.com",
		ServicePackList: &ReplacementServicePackAssignmentList{
			ServicePack: []ServicePackAssignment{
				{ServicePackName: "Voicemail", AuthorizedQuantity: 1},
			},
		},
	}

	data, err := codec.Encode(r, req)
	require.NoError(t, err)

	decoded, err := codec.Decode(r, data, nil)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
}

func TestResolveFindsHighestRegisteredVersion(t *testing.T) {
	tag, ok := Resolve("UserGetRegistrationListRequest")
	require.True(t, ok)
	assert.Equal(t, "UserGetRegistrationListRequest22", tag)

	_, ok = Resolve("NoSuchCommand")
	assert.False(t, ok)
}

func TestNoDuplicateTagsOrGoTypes(t *testing.T) {
	// NewRegistry panics on any duplicate tag or Go type in the catalog;
	// simply building it here is the assertion.
	assert.NotPanics(t, func() {
		NewRegistry()
	})
}
