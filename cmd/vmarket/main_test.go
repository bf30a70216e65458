package main

import (
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

func TestParseJobArgs(t *testing.T) {
	args, err := parseJobArgs("epl", "2025-01-15", "usdc", 7)
	require.NoError(t, err)
	assert.Equal(t, domain.LeagueEPL, args.League)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 15}, args.Date)
	assert.Equal(t, domain.Room("usdc"), args.Room)
	assert.Equal(t, int64(7), args.MarketID)

	_, err = parseJobArgs("mlb", "", "", 0)
	require.ErrorIs(t, err, domain.ErrUnknownLeague)

	_, err = parseJobArgs("", "15/01/2025", "", 0)
	require.Error(t, err)

	_, err = parseJobArgs("", "", "", -1)
	require.Error(t, err)
}
