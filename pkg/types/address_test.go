package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAddress() Address {
	line2 := "  "
	return Address{
		FirstName:  " Thandi ",
		LastName:   "Mokoena",
		Line1:      "12 Long Street",
		Line2:      &line2,
		City:       "Cape Town",
		Province:   "Western Cape",
		PostalCode: "8001",
	}
}

func TestAddressValueRoundTrip(t *testing.T) {
	addr := validAddress()

	raw, err := addr.Value()
	require.NoError(t, err)

	var decoded Address
	require.NoError(t, decoded.Scan(raw))

	assert.Equal(t, "Thandi", decoded.FirstName)
	assert.Equal(t, "ZA", decoded.Country)
	assert.Nil(t, decoded.Line2)
	assert.Equal(t, "Thandi Mokoena", decoded.FullName())
}

func TestAddressValueRejectsMissingFields(t *testing.T) {
	addr := validAddress()
	addr.PostalCode = " "

	_, err := addr.Value()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postal_code")
}

func TestAddressScanNil(t *testing.T) {
	addr := validAddress()
	require.NoError(t, addr.Scan(nil))
	assert.Equal(t, Address{}, addr)
}

func TestAddressScanUnsupported(t *testing.T) {
	var addr Address
	require.Error(t, addr.Scan(42))
}
