package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/alvarodevdoo/ERP-sub000/internal/core/context"
)

func TestCELOracle_DefaultPolicy(t *testing.T) {
	oracle, err := NewCELOracle(StaticSubjects{
		"admin":   {UserID: "admin", IsAdmin: true},
		"clerk":   {UserID: "clerk", Permissions: []string{"stock:read", "stock:write"}},
		"manager": {UserID: "manager", Permissions: []string{"stock:*"}},
		"nobody":  {UserID: "nobody"},
	}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	cases := []struct {
		user   string
		action Action
		want   bool
	}{
		{"admin", ActionManageLocations, true},
		{"clerk", ActionRead, true},
		{"clerk", ActionWrite, true},
		{"clerk", ActionAdjust, false},
		{"manager", ActionTransfer, true},
		{"nobody", ActionRead, false},
		{"ghost", ActionRead, false},
		{"", ActionRead, false},
	}
	for _, tc := range cases {
		got, err := oracle.CheckPermission(ctx, tc.user, ResourceStock, tc.action)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %s", tc.user, tc.action)
	}
}

func TestCELOracle_Override(t *testing.T) {
	oracle, err := NewCELOracle(StaticSubjects{
		"lead":  {UserID: "lead", Roles: []string{"warehouse_lead"}},
		"clerk": {UserID: "clerk", Permissions: []string{"stock:manage_locations"}},
	}, map[Action]string{
		ActionManageLocations: `"warehouse_lead" in roles`,
	})
	require.NoError(t, err)

	ok, err := oracle.CheckPermission(context.Background(), "lead", ResourceStock, ActionManageLocations)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = oracle.CheckPermission(context.Background(), "clerk", ResourceStock, ActionManageLocations)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewCELOracle_RejectsBadPolicies(t *testing.T) {
	_, err := NewCELOracle(StaticSubjects{}, map[Action]string{ActionRead: `is_admin &&`})
	assert.Error(t, err)

	_, err = NewCELOracle(StaticSubjects{}, map[Action]string{ActionRead: `user_id`})
	assert.Error(t, err)
}

func TestContextSubjects(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "u1",
		Permissions: []string{"stock:report"},
	})

	oracle, err := NewCELOracle(ContextSubjects{}, nil)
	require.NoError(t, err)

	ok, err := oracle.CheckPermission(ctx, "u1", ResourceStock, ActionReport)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = oracle.CheckPermission(ctx, "u2", ResourceStock, ActionReport)
	require.NoError(t, err)
	assert.False(t, ok)
}
