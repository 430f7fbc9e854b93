package suite

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"raffleHarness/internal/lottery/lotterytest"
)

var funds = new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))

func newEnv(net *lotterytest.Network, players int) Env {
	env := Env{
		Contract:  net,
		Fulfiller: net,
		Network:   net,
		Deployer:  net.Account(0, funds),
		Interval:  30,
		Timeout:   time.Second,
	}
	for i := 1; i <= players; i++ {
		env.Players = append(env.Players, net.Account(int64(i), funds))
	}
	return env
}

func TestSuitePassesAgainstConformingRaffle(t *testing.T) {
	net := lotterytest.NewNetwork(big.NewInt(1e16), 30)
	s := New(newEnv(net, 3), zap.NewNop())

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	_, err = uuid.Parse(report.RunID)
	require.NoError(t, err)

	for _, outcome := range report.Outcomes {
		require.True(t, outcome.Passed, "%s: %s", outcome.Name, outcome.Error)
	}
	require.True(t, report.OK())
	require.Equal(t, len(DefaultChecks()), report.Passed)
}

func TestSuiteRevertsStateBetweenChecks(t *testing.T) {
	ctx := context.Background()
	net := lotterytest.NewNetwork(big.NewInt(1e16), 30)
	s := New(newEnv(net, 2), nil)

	_, err := s.Run(ctx)
	require.NoError(t, err)

	players, err := net.NumberOfPlayers(ctx)
	require.NoError(t, err)
	require.Zero(t, players.Sign())

	winner, err := net.RecentWinner(ctx)
	require.NoError(t, err)
	require.Zero(t, winner, "the full round must be rolled back")
}

func TestSuiteReportsFailedCheck(t *testing.T) {
	net := lotterytest.NewNetwork(big.NewInt(1e16), 30)
	env := newEnv(net, 1)
	env.Interval = 60
	s := New(env, nil)
	require.NoError(t, s.Only("constructor/initializes", "check-upkeep/true-when-ready"))

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Passed)
	require.Contains(t, report.Outcomes[0].Error, "interval = 30, want 60")
}

func TestSuiteFailsWithoutCoordinator(t *testing.T) {
	net := lotterytest.NewNetwork(big.NewInt(1e16), 30)
	env := newEnv(net, 1)
	env.Fulfiller = nil
	s := New(env, nil)
	require.NoError(t, s.Only("fulfill/requires-request"))

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
}

func TestUpkeepBeforeIntervalOnStaleDeployment(t *testing.T) {
	ctx := context.Background()
	net := lotterytest.NewNetwork(big.NewInt(1e16), 30)
	require.NoError(t, net.IncreaseTime(ctx, 120))
	require.NoError(t, net.Mine(ctx))

	s := New(newEnv(net, 1), nil)
	require.NoError(t, s.Only("check-upkeep/false-before-interval"))
	report, err := s.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.OK(), "%+v", report.Outcomes)

	env := newEnv(net, 1)
	env.Fulfiller = nil
	s = New(env, nil)
	require.NoError(t, s.Only("check-upkeep/false-before-interval"))
	report, err = s.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Contains(t, report.Outcomes[0].Error, "precondition: 121s of the 30s interval already elapsed")
}

func TestSuitePassesOnStaleDeployment(t *testing.T) {
	ctx := context.Background()
	net := lotterytest.NewNetwork(big.NewInt(1e16), 30)
	require.NoError(t, net.IncreaseTime(ctx, 3600))

	report, err := New(newEnv(net, 3), nil).Run(ctx)
	require.NoError(t, err)
	for _, outcome := range report.Outcomes {
		require.True(t, outcome.Passed, "%s: %s", outcome.Name, outcome.Error)
	}
}

func TestSuiteRejectsUnknownCheck(t *testing.T) {
	s := New(Env{}, nil)
	require.ErrorContains(t, s.Only("enter/does-not-exist"), "unknown check")
}

func TestSuiteRequiresAccounts(t *testing.T) {
	net := lotterytest.NewNetwork(big.NewInt(1e16), 30)
	s := New(Env{Contract: net, Network: net, Players: []*bind.TransactOpts{}}, nil)
	_, err := s.Run(context.Background())
	require.Error(t, err)
}

func TestExpectRevert(t *testing.T) {
	want := errors.New("NotOpen")
	require.NoError(t, expectRevert(want, want))
	require.ErrorContains(t, expectRevert(nil, want), "call succeeded")
	require.ErrorContains(t, expectRevert(errors.New("other"), want), "got: other")
}
