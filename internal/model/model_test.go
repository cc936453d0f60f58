package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/title-reviews/internal/apperr"
)

func TestValidateYear(t *testing.T) {
	now := time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		year int
		ok   bool
	}{
		{CinematographyYear - 1, false},
		{CinematographyYear, true},
		{1999, true},
		{2026, true},
		{2027, false},
		{0, false},
	}
	for _, tc := range cases {
		err := ValidateYear(tc.year, now)
		if tc.ok {
			assert.NoError(t, err, "year %d", tc.year)
			continue
		}
		require.Error(t, err, "year %d", tc.year)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Contains(t, err.(*apperr.Error).Fields, "year")
	}
}

func TestValidateScore(t *testing.T) {
	for _, s := range []int{1, 5, 10} {
		assert.NoError(t, ValidateScore(s), "score %d", s)
	}
	for _, s := range []int{-1, 0, 11, 100} {
		err := ValidateScore(s)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "score %d", s)
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.NoError(t, ValidateUsername("Me"), "reserved word is case-sensitive")
	assert.NoError(t, ValidateUsername("john.doe+1@x"))

	for _, bad := range []string{"me", "", "with space", "semi;colon", strings.Repeat("a", MaxUsernameLen+1)} {
		err := ValidateUsername(bad)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "username %q", bad)
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	r, err = ParseRole("moderator")
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, r)

	_, err = ParseRole("superadmin")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestValidateCatalogEntry(t *testing.T) {
	assert.NoError(t, ValidateCatalogEntry("Films", "films"))

	err := ValidateCatalogEntry("", "bad slug!")
	require.Error(t, err)
	fields := err.(*apperr.Error).Fields
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "slug")
}

func TestUserPatchApply(t *testing.T) {
	u := &User{Username: "bob", Email: "bob@example.com", Role: RoleUser}
	bio := "likes noir"
	role := RoleModerator
	require.NoError(t, UserPatch{Bio: &bio, Role: &role}.Apply(u))
	assert.Equal(t, "likes noir", u.Bio)
	assert.Equal(t, RoleModerator, u.Role)
	assert.Equal(t, "bob", u.Username)

	bad := Role("root")
	assert.Error(t, UserPatch{Role: &bad}.Apply(u))

	reserved := "me"
	assert.Error(t, UserPatch{Username: &reserved}.Apply(u))
}

func TestPageWindow(t *testing.T) {
	p := Page{Number: 2, Size: 10}
	lo, hi := p.Window(25)
	assert.Equal(t, 10, lo)
	assert.Equal(t, 20, hi)

	lo, hi = Page{Number: 4, Size: 10}.Window(25)
	assert.Equal(t, 25, lo)
	assert.Equal(t, 25, hi)

	assert.Equal(t, Page{Number: 1, Size: 10}, Page{}.Normalize(10))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	for _, bad := range []string{"", "alice", "Alice <alice@example.com>", strings.Repeat("a", MaxEmailLen) + "@x.io"} {
		assert.True(t, apperr.Is(ValidateEmail(bad), apperr.KindValidation), "email %q", bad)
	}
	assert.Equal(t, "bob@example.com", NormalizeEmail("  Bob@Example.COM "))
}
