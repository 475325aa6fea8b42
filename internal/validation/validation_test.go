package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/leadflow/internal/apperr"
)

type followUpForm struct {
	Date     string `json:"date" validate:"required,date"`
	Time     string `json:"time" validate:"required,clock"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		form    followUpForm
		wantErr string
	}{
		{name: "valid", form: followUpForm{Date: "2025-03-12", Time: "09:15", Priority: "high"}},
		{name: "missing date", form: followUpForm{Time: "09:15"}, wantErr: "Date is required"},
		{name: "bad date", form: followUpForm{Date: "12/03/2025", Time: "09:15"}, wantErr: "Date must be a date in YYYY-MM-DD format"},
		{name: "bad clock", form: followUpForm{Date: "2025-03-12", Time: "25:99"}, wantErr: "Time must be a time in HH:MM format"},
		{name: "bad priority", form: followUpForm{Date: "2025-03-12", Time: "09:15", Priority: "urgent"}, wantErr: "Priority must be one of [low medium high]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.form)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, apperr.Message(err), tt.wantErr)
		})
	}
}

func TestIsValidDateAndClock(t *testing.T) {
	assert.True(t, IsValidDate("2024-02-29"))
	assert.False(t, IsValidDate("2025-02-29"))
	assert.False(t, IsValidDate(""))
	assert.True(t, IsValidClock("23:59"))
	assert.False(t, IsValidClock("24:00"))
}

func TestMustRegister(t *testing.T) {
	v := validator.New()
	always := func(validator.FieldLevel) bool { return true }

	assert.NotPanics(t, func() { mustRegister(v, "always", always) })
	assert.Panics(t, func() { mustRegister(v, "", always) })
	assert.Panics(t, func() { mustRegister(v, "nothing", nil) })
}
