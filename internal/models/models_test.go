package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalPresence(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantSet  bool
		wantNull bool
		wantVal  string
	}{
		{"absent", `{}`, false, false, ""},
		{"explicit null", `{"memo":null}`, true, true, ""},
		{"empty string", `{"memo":""}`, true, false, ""},
		{"value", `{"memo":"x"}`, true, false, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in UpdateItemInput
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			assert.Equal(t, tt.wantSet, in.Memo.Set)
			assert.Equal(t, tt.wantNull, in.Memo.Null)
			assert.Equal(t, tt.wantVal, in.Memo.Value)
			assert.False(t, in.Name.Set, "untouched fields stay unset")
		})
	}
}

func TestOptionalSlice(t *testing.T) {
	var in UpdateItemInput
	require.NoError(t, json.Unmarshal([]byte(`{"tags":["a","b"],"quantity":3}`), &in))
	assert.Equal(t, []string{"a", "b"}, in.Tags.Value)
	assert.Equal(t, 3, in.Quantity.Value)
	assert.Equal(t, 3, *in.Quantity.Ptr())
	assert.Nil(t, Null[int]().Ptr())
}

func TestInviteCodeAcceptableAt(t *testing.T) {
	expires := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	code := InviteCode{Code: "ABCD-EFGH-JK23", Status: InviteActive, ExpiresAt: expires}

	assert.True(t, code.AcceptableAt(expires))
	assert.False(t, code.AcceptableAt(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))

	used := code
	used.Status = InviteUsed
	assert.False(t, used.AcceptableAt(expires.Add(-time.Hour)))

	malformed := code
	malformed.Code = "ABCD-EFGH-JK20"
	assert.False(t, malformed.AcceptableAt(expires.Add(-time.Hour)))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, ItemSold.Valid())
	assert.False(t, ItemStatus("lost").Valid())
	assert.True(t, WishlistCancelled.Valid())
	assert.False(t, WishlistStatus("").Valid())
}

func TestUserIsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&User{Role: RoleMember}).IsAdmin())
}
