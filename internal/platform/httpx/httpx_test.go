package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: order 9", shared.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: lines required", shared.ErrValidation), http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("%w: order is paid", shared.ErrConflict), http.StatusBadRequest, "invalid_state"},
		{shared.ErrBusy, http.StatusConflict, "busy"},
		{errors.New("Odoo Server Error"), http.StatusInternalServerError, "upstream_error"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())

		var body ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, tc.kind, body.Error)
		assert.Equal(t, tc.err.Error(), body.Message)
	}
}

func TestValidateWrapsValidationError(t *testing.T) {
	type input struct {
		Name  string  `validate:"required"`
		Price float64 `validate:"gte=0"`
	}
	err := Validate(input{Price: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "input.Name failed on required")
	assert.Contains(t, err.Error(), "input.Price failed on gte")

	require.NoError(t, Validate(input{Name: "Vestido", Price: 10}))
}
