package core

import (
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower bool
		want  string
	}{
		{name: "trim", s: "  User 1\t", want: "User 1"},
		{name: "trim and lower", s: " User 1 ", lower: true, want: "user 1"},
		{name: "empty", s: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanString(tt.s, tt.lower))
		})
	}
}

func TestInitValidators(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	InitValidators(validate, translator)

	type query struct {
		From  string `query:"from" validate:"omitempty,isodate"`
		Until string `json:"until" validate:"required"`
	}

	tests := []struct {
		name    string
		q       query
		wantErr map[string]string
	}{
		{name: "valid", q: query{From: "2026-03-02", Until: "x"}},
		{name: "no from", q: query{Until: "x"}},
		{
			name:    "bad date",
			q:       query{From: "2026-02-30", Until: "x"},
			wantErr: map[string]string{"from": "from must be a date formatted as YYYY-MM-DD"},
		},
		{
			name:    "required",
			q:       query{From: "02/03/2026"},
			wantErr: map[string]string{"from": "from must be a date formatted as YYYY-MM-DD", "until": "this field is required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.q)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "got %v", err)
			got := make(map[string]string, len(vErrs))
			for _, e := range vErrs {
				got[e.Field()] = e.Translate(translator)
			}
			assert.Equal(t, tt.wantErr, got)
		})
	}
}

func TestErrors(t *testing.T) {
	err := NewValidationError(errors.New("invalid input"), FieldError{Field: "from", Error: "bad date"})
	assert.True(t, IsValidationError(errors.Wrap(err, "binding")))
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.EqualError(t, err, "invalid input")

	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("integrity issue"), "saving")))
	assert.False(t, IsShutdown(err))
}

func TestNewConfig(t *testing.T) {
	require.NoError(t, os.Setenv("ENV", "test"))
	require.NoError(t, os.Setenv("TEST_PLANNER_MAXHORIZONDAYS", "45"))
	require.NoError(t, os.Setenv("TEST_LOCK_BACKEND", "Redis"))
	defer func() {
		_ = os.Unsetenv("ENV")
		_ = os.Unsetenv("TEST_PLANNER_MAXHORIZONDAYS")
		_ = os.Unsetenv("TEST_LOCK_BACKEND")
	}()

	conf := NewConfig()
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.Equal(t, 45, conf.Planner.MaxHorizonDays)
	assert.Equal(t, 30, conf.Planner.DefaultWindowDays)
	assert.Equal(t, 0.25, conf.Planner.MinSliceHours)
	assert.Equal(t, "redis", conf.Lock.Backend)
	assert.Equal(t, 5*time.Second, conf.Server.ShutdownTimeout)
	assert.Equal(t, "localhost:5432", conf.Database.Address())
}
