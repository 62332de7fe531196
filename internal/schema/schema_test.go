package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIsCaseInsensitive(t *testing.T) {
	assert.NotNil(t, Get("generic_customer"))
	assert.NotNil(t, Get("Generic_Customer"))
	assert.NotNil(t, Get("GENERIC_CUSTOMER"))
	assert.Nil(t, Get("no_such_schema"))
}

func TestBuiltinSchemasRegistered(t *testing.T) {
	names := Names()
	for _, want := range []string{
		"generic_customer", "tally_customer", "zoho_contact",
		"sales_invoice", "employee", "superstore_order",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRegisterCustomSchema(t *testing.T) {
	custom := &TargetSchema{
		Name:    "Warehouse_Item",
		Columns: []TargetColumn{{Name: "sku", DataType: TypeString, Required: true}},
	}
	Register(custom)
	assert.Same(t, custom, Get("warehouse_item"))
}

func TestColumnLookup(t *testing.T) {
	s := Get("generic_customer")
	require.NotNil(t, s)

	col := s.Column("First_Name")
	require.NotNil(t, col)
	assert.Equal(t, "first_name", col.Name)
	assert.True(t, col.Required)
	assert.Nil(t, s.Column("missing"))
}

func TestRequiredAndOptionalSplit(t *testing.T) {
	s := &TargetSchema{Columns: []TargetColumn{
		{Name: "a", Required: true},
		{Name: "b"},
		{Name: "c", Required: true},
	}}
	required := s.Required()
	require.Len(t, required, 2)
	assert.Equal(t, "a", required[0].Name)
	assert.Len(t, s.Optional(), 1)
	assert.Equal(t, []string{"a", "b", "c"}, s.ColumnNames())
}

func TestSuperstoreHints(t *testing.T) {
	s := Get("superstore_order")
	require.NotNil(t, s)
	assert.Contains(t, s.Column("shipping_days").TransformationHint, "COMPUTE")
	assert.Contains(t, s.Column("full_address").TransformationHint, "CONCATENATE")
}
