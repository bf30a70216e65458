package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

const (
	operator = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	stranger = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func TestAuthorize(t *testing.T) {
	c := newFakeContract()
	c.roles[domain.RoleCreator] = map[string]bool{operator: true}
	a := NewAuthorizer(fakeRegistry{"vesta": c}, testLogger())
	ctx := context.Background()

	d, err := a.Authorize(ctx, "vesta", domain.RoleCreator, operator)
	require.NoError(t, err)
	assert.Equal(t, domain.Authorized, d)

	d, err = a.Authorize(ctx, "vesta", domain.RoleCreator, stranger)
	require.NoError(t, err)
	assert.Equal(t, domain.Denied, d)

	c.roleErr = errors.New("dial tcp: connection refused")
	d, err = a.Authorize(ctx, "vesta", domain.RoleCreator, operator)
	assert.Equal(t, domain.Unavailable, d)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	_, err = a.Authorize(ctx, "gold", domain.RoleCreator, operator)
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)
}

func TestAuthorizeAny(t *testing.T) {
	c := newFakeContract()
	c.roles[domain.RoleCreator] = map[string]bool{operator: true}
	a := NewAuthorizer(fakeRegistry{"vesta": c}, testLogger())
	ctx := context.Background()

	d, err := a.AuthorizeAny(ctx, "vesta", operator, domain.RoleAdmin, domain.RoleCreator)
	require.NoError(t, err)
	assert.Equal(t, domain.Authorized, d)

	d, err = a.AuthorizeAny(ctx, "vesta", stranger, domain.RoleAdmin, domain.RoleCreator)
	require.NoError(t, err)
	assert.Equal(t, domain.Denied, d)
}

func TestRoleService(t *testing.T) {
	c := newFakeContract()
	c.roles[domain.RoleAdmin] = map[string]bool{operator: true}
	c.roles[domain.RoleResolver] = map[string]bool{operator: true}
	audit := &memAuditStore{}
	s := NewRoleService(fakeRegistry{"usdc": c}, audit, testLogger())
	ctx := context.Background()

	roles, err := s.ListRoles(ctx, "usdc", operator)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleAdmin, domain.RoleResolver}, roles)

	roles, err = s.ListRoles(ctx, "usdc", stranger)
	require.NoError(t, err)
	assert.Empty(t, roles)

	tx, err := s.Grant(ctx, "usdc", domain.RoleCreator, stranger, operator)
	require.NoError(t, err)
	assert.Equal(t, "0xgrant", tx)
	_, err = s.Revoke(ctx, "usdc", domain.RoleCreator, stranger, operator)
	require.NoError(t, err)

	assert.Equal(t, []string{"creator:" + stranger}, c.grants)
	assert.Equal(t, []string{"creator:" + stranger}, c.revokes)
	assert.Equal(t, []string{"role_grant", "role_revoke"}, audit.events)

	c.roleErr = errors.New("rpc down")
	_, err = s.ListRoles(ctx, "usdc", operator)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestMarketInfoUsesCache(t *testing.T) {
	c := newFakeContract()
	c.infos[5] = domain.MarketInfo{MarketID: 5, Question: "q"}
	cache := newMemInfoCache()
	s := NewMarketQueryService(&memMarketStore{}, &memRuleStore{}, fakeRegistry{"vesta": c}, cache, testLogger())
	ctx := context.Background()

	info, err := s.MarketInfo(ctx, "vesta", 5)
	require.NoError(t, err)
	assert.Equal(t, "q", info.Question)
	info, err = s.MarketInfo(ctx, "vesta", 5)
	require.NoError(t, err)
	assert.Equal(t, "q", info.Question)
	assert.Equal(t, 1, c.infoCalls)

	_, err = s.MarketInfo(ctx, "vesta", 6)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClaim(t *testing.T) {
	c := newFakeContract()
	c.infos[1] = domain.MarketInfo{MarketID: 1, Resolved: true, Outcome: 1}
	c.infos[2] = domain.MarketInfo{MarketID: 2, Resolved: true, Outcome: 0}
	c.infos[3] = domain.MarketInfo{MarketID: 3}
	c.shares[1] = []*big.Int{big.NewInt(0), big.NewInt(40)}
	c.shares[2] = []*big.Int{big.NewInt(0), big.NewInt(10)}

	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	markets := &memMarketStore{}
	for id := int64(1); id <= 3; id++ {
		markets.mappings = append(markets.mappings, domain.MarketMapping{
			Room: "vesta", MarketID: id, EndTime: now.Add(-time.Duration(id) * time.Hour).Unix(),
		})
	}
	audit := &memAuditStore{}
	s := NewClaimService(markets, audit, fakeRegistry{"vesta": c}, operator, testLogger())
	s.now = func() time.Time { return now }

	report, err := s.Claim(context.Background(), "vesta", 0)
	require.NoError(t, err)
	assert.Len(t, report.Items, 3)
	assert.Equal(t, []int64{1}, c.claims)
	assert.Equal(t, 1, report.Tally()[domain.ItemClaimed])
	assert.Equal(t, []string{"winnings_claimed"}, audit.events)

	report, err = s.Claim(context.Background(), "vesta", 2)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, "no winning shares", report.Items[0].Reason)
}
