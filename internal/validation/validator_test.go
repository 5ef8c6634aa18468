package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequired(t *testing.T) {
	type form struct {
		Name string `validate:"required"`
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(&form{Name: "x"}))

	err := v.Validate(&form{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name")
}

func TestValidateEmail(t *testing.T) {
	type form struct {
		Email string `validate:"email"`
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(&form{Email: "user@example.com"}))
	assert.NoError(t, v.Validate(&form{Email: ""}), "empty passes, combine with required")
	assert.Error(t, v.Validate(&form{Email: "no-at-sign"}))
	assert.Error(t, v.Validate(&form{Email: "@example.com"}))
	assert.Error(t, v.Validate(&form{Email: "user@"}))
	assert.Error(t, v.Validate(&form{Email: "user@nodot"}))
}

func TestValidateMAC(t *testing.T) {
	type form struct {
		MAC string `validate:"required,mac"`
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(&form{MAC: "aa:bb:cc:dd:ee:ff"}))
	assert.NoError(t, v.Validate(&form{MAC: "AA-BB-CC-DD-EE-FF"}))
	assert.Error(t, v.Validate(&form{MAC: "zz:zz:zz:zz:zz:zz"}))
	assert.Error(t, v.Validate(&form{MAC: "aabbcc"}))
}

func TestValidateStringLengths(t *testing.T) {
	type form struct {
		Code string `validate:"min=4,max=8"`
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(&form{Code: "1234"}))
	assert.NoError(t, v.Validate(&form{Code: "12345678"}))
	assert.Error(t, v.Validate(&form{Code: "123"}))
	assert.Error(t, v.Validate(&form{Code: "123456789"}))
}

func TestValidateIntBounds(t *testing.T) {
	type form struct {
		Count int `validate:"gte=1,lte=1000"`
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(&form{Count: 1}))
	assert.NoError(t, v.Validate(&form{Count: 1000}))
	assert.Error(t, v.Validate(&form{Count: 0}))
	assert.Error(t, v.Validate(&form{Count: 1001}))
}

func TestValidateOneOf(t *testing.T) {
	type form struct {
		Role string `validate:"oneof=admin staff"`
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(&form{Role: "admin"}))
	assert.NoError(t, v.Validate(&form{Role: "staff"}))
	assert.NoError(t, v.Validate(&form{Role: ""}), "empty passes, combine with required")
	assert.Error(t, v.Validate(&form{Role: "superuser"}))
}

func TestValidateNonStruct(t *testing.T) {
	v := NewValidator()
	assert.Error(t, v.Validate("not a struct"))
}

func TestValidateSkipsUntaggedFields(t *testing.T) {
	type form struct {
		Anything string
		Count    int
	}

	v := NewValidator()
	assert.NoError(t, v.Validate(&form{}))
}
