package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type signupPayload struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

func TestStructAcceptsValidPayload(t *testing.T) {
	require.NoError(t, Struct(signupPayload{Name: "Alice", Email: "alice@example.com", Password: "Secret123!"}))
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	err := Struct(signupPayload{Name: "Al", Email: "invalid", Password: "short"})

	var failures FieldErrors
	require.True(t, errors.As(err, &failures), "expected FieldErrors, got %T", err)
	require.Len(t, failures, 3)

	byField := map[string]FieldError{}
	for _, f := range failures {
		byField[f.Field] = f
	}
	require.Equal(t, "min", byField["name"].Rule)
	require.Equal(t, "name must be at least 3 characters", byField["name"].Message)
	require.Equal(t, "email must be a valid email address", byField["email"].Message)
	require.Equal(t, "min", byField["password"].Rule)
	require.Contains(t, err.Error(), "; ")
}

func TestStructNumericBounds(t *testing.T) {
	type payload struct {
		MaxAdsSites int    `json:"maxAdsSites" validate:"gte=0"`
		Plan        string `json:"plan" validate:"oneof=BASIC PRO"`
	}

	err := Struct(payload{MaxAdsSites: -1, Plan: "FREE"})
	require.EqualError(t, err, "maxAdsSites must be at least 0; plan must be one of BASIC, PRO")
}

func TestTeamRoleRule(t *testing.T) {
	type payload struct {
		Role string `json:"role" validate:"required,teamrole"`
	}

	require.NoError(t, Struct(payload{Role: "ADMIN"}))
	require.NoError(t, Struct(payload{Role: "member"}))
	require.EqualError(t, Struct(payload{Role: "SUPERUSER"}), "role must be one of OWNER, ADMIN, MEMBER")
}

func TestDomainListRule(t *testing.T) {
	type payload struct {
		Domains string `json:"allowedDomains" validate:"domainlist"`
	}

	require.NoError(t, Struct(payload{Domains: ""}))
	require.NoError(t, Struct(payload{Domains: "acme.com, Example.org"}))
	require.Error(t, Struct(payload{Domains: "acme.com, not a domain"}))
	require.False(t, IsDomainList("@acme.com"))
}

func TestStructRejectsNonStruct(t *testing.T) {
	err := Struct("not a struct")
	require.Error(t, err)
	var failures FieldErrors
	require.False(t, errors.As(err, &failures))
}
