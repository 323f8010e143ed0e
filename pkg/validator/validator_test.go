package validator

import (
	"math"
	"testing"

	apperrors "SafeYatra/pkg/errors"

	"github.com/stretchr/testify/assert"
)

type point struct {
	Latitude  *float64 `validate:"required,lat"`
	Longitude *float64 `validate:"required,lng"`
}

func f(v float64) *float64 { return &v }

func TestCoordinates(t *testing.T) {
	assert.NoError(t, ValidateStruct(point{Latitude: f(0), Longitude: f(0)}))
	assert.NoError(t, ValidateStruct(point{Latitude: f(-90), Longitude: f(180)}))

	cases := map[string]point{
		"missing lat": {Longitude: f(1)},
		"lat range":   {Latitude: f(91), Longitude: f(1)},
		"lng range":   {Latitude: f(1), Longitude: f(-181)},
		"nan":         {Latitude: f(math.NaN()), Longitude: f(1)},
		"inf":         {Latitude: f(1), Longitude: f(math.Inf(1))},
	}
	for name, p := range cases {
		err := ValidateStruct(p)
		assert.Error(t, err, name)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), name)
	}
}
