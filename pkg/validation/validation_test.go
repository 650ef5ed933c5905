package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-service/pkg/apperr"
)

type line struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,min=1"`
}

type request struct {
	Items  []line `json:"items" validate:"required,min=1,dive"`
	Method string `json:"payment_method" validate:"required,oneof=cod online"`
	Email  string `json:"shipping_email" validate:"required,email"`
}

func TestStructKeysByJSONPath(t *testing.T) {
	v := New()
	err := v.Struct(request{
		Items:  []line{{ItemID: 1, Quantity: 1}, {ItemID: 2, Quantity: 0}},
		Method: "cheque",
		Email:  "not-an-email",
	})

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "items.1.quantity")
	assert.Equal(t, "The selected payment_method is invalid.", appErr.Fields["payment_method"])
	assert.Equal(t, "The shipping_email field must be a valid email address.", appErr.Fields["shipping_email"])
}

func TestStructEmptyItems(t *testing.T) {
	err := New().Struct(request{Items: []line{}, Method: "cod", Email: "a@b.co"})

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "items")
}

func TestStructValid(t *testing.T) {
	err := New().Struct(request{Items: []line{{ItemID: 1, Quantity: 2}}, Method: "online", Email: "a@b.co"})
	assert.NoError(t, err)
}

func TestMerge(t *testing.T) {
	err := Merge(nil, map[string]string{"tax_percentage": "bad"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	base := apperr.InvalidField("items", "required")
	merged := Merge(base, map[string]string{"items": "ignored", "shipping_charge": "bad"})
	var appErr *apperr.Error
	require.ErrorAs(t, merged, &appErr)
	assert.Equal(t, "required", appErr.Fields["items"])
	assert.Equal(t, "bad", appErr.Fields["shipping_charge"])

	assert.NoError(t, Merge(nil, nil))
}
