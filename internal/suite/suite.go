// Package suite runs the raffle behaviour checks against a development
// network. Every check starts from the same chain state: the network is
// snapshotted before the check and reverted after it.
package suite

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"raffleHarness/internal/lottery"
)

// Network is a development node that can snapshot and restore its state.
type Network interface {
	lottery.Chain
	LatestBlockTimestamp(ctx context.Context) (uint64, error)
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
}

// Env is everything a check may touch.
type Env struct {
	Contract  lottery.Contract
	Fulfiller lottery.Fulfiller
	Network   Network
	// Deployer signs upkeep and coordinator transactions.
	Deployer *bind.TransactOpts
	// Players enter the raffle; at least two are needed for the full round.
	Players []*bind.TransactOpts
	// Interval is the configured raffle interval in seconds; zero skips the
	// constructor interval comparison.
	Interval uint64
	Timeout  time.Duration
}

// Check is one named behaviour assertion.
type Check struct {
	Name string
	Run  func(ctx context.Context, s *Session) error
}

// Outcome is the result of a single check.
type Outcome struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a run.
type Report struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Outcomes []Outcome `json:"outcomes"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return r.Failed == 0
}

// Session is the per-check view of the environment.
type Session struct {
	Env
	Runner *lottery.Runner
	fee    *big.Int
}

// Suite runs checks in isolation.
type Suite struct {
	env    Env
	checks []Check
	logger *zap.Logger
}

// New builds a Suite with the default checks.
func New(env Env, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{env: env, checks: DefaultChecks(), logger: logger}
}

// Checks returns the registered checks.
func (s *Suite) Checks() []Check {
	return s.checks
}

// Only restricts the suite to the named checks.
func (s *Suite) Only(names ...string) error {
	if len(names) == 0 {
		return nil
	}
	byName := make(map[string]Check, len(s.checks))
	for _, c := range s.checks {
		byName[c.Name] = c
	}
	selected := make([]Check, 0, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown check %q", name)
		}
		selected = append(selected, c)
	}
	s.checks = selected
	return nil
}

// Run executes every check and returns the report. The error is non-nil only
// when the suite itself could not continue, for instance when the network
// refused to revert a snapshot.
func (s *Suite) Run(ctx context.Context) (Report, error) {
	if s.env.Deployer == nil || len(s.env.Players) == 0 {
		return Report{}, fmt.Errorf("suite requires a deployer and at least one player")
	}
	report := Report{RunID: uuid.NewString(), Started: time.Now().UTC()}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	fee, err := s.env.Contract.EntranceFee(ctx)
	if err != nil {
		return report, fmt.Errorf("get entrance fee: %w", err)
	}

	for _, check := range s.checks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.runOne(ctx, check, fee)
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Passed {
			report.Passed++
			logger.Info("check passed", zap.String("check", check.Name), zap.Duration("duration", outcome.Duration))
		} else {
			report.Failed++
			logger.Error("check failed", zap.String("check", check.Name), zap.String("error", outcome.Error))
		}
	}

	logger.Info("verification finished", zap.Int("passed", report.Passed), zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Suite) runOne(ctx context.Context, check Check, fee *big.Int) (Outcome, error) {
	snapshot, err := s.env.Network.Snapshot(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("snapshot before %s: %w", check.Name, err)
	}

	session := &Session{
		Env:    s.env,
		Runner: lottery.NewRunner(s.env.Contract, s.env.Fulfiller, s.env.Network, s.env.Timeout, s.logger.Named(check.Name)),
		fee:    fee,
	}

	start := time.Now()
	runErr := check.Run(ctx, session)
	outcome := Outcome{Name: check.Name, Passed: runErr == nil, Duration: time.Since(start)}
	if runErr != nil {
		outcome.Error = runErr.Error()
	}

	if err := s.env.Network.Revert(ctx, snapshot); err != nil {
		return outcome, fmt.Errorf("revert after %s: %w", check.Name, err)
	}
	return outcome, nil
}

// Fee is the raffle entrance fee read at the start of the run.
func (s *Session) Fee() *big.Int {
	return new(big.Int).Set(s.fee)
}

// Player returns the i-th player account.
func (s *Session) Player(i int) (*bind.TransactOpts, error) {
	if i >= len(s.Players) {
		return nil, fmt.Errorf("check needs %d players, have %d", i+1, len(s.Players))
	}
	return s.Players[i], nil
}

// EnterAndAdvance enters the first player and moves time past the interval,
// leaving the raffle ready for upkeep.
func (s *Session) EnterAndAdvance(ctx context.Context) (*bind.TransactOpts, error) {
	player, err := s.Player(0)
	if err != nil {
		return nil, err
	}
	if err := s.Runner.Enter(ctx, []*bind.TransactOpts{player}, s.Fee()); err != nil {
		return nil, err
	}
	if err := s.Runner.AdvancePastInterval(ctx); err != nil {
		return nil, err
	}
	return player, nil
}

// SinceLastPayout returns the seconds between the raffle's latest timestamp and
// the head block, together with the raffle interval.
func (s *Session) SinceLastPayout(ctx context.Context) (elapsed, interval uint64, err error) {
	period, err := s.Contract.Interval(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("get interval: %w", err)
	}
	last, err := s.Contract.LatestTimeStamp(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("get latest timestamp: %w", err)
	}
	head, err := s.Network.LatestBlockTimestamp(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("get head timestamp: %w", err)
	}
	if !period.IsUint64() || !last.IsUint64() {
		return 0, 0, fmt.Errorf("interval %s or latest timestamp %s out of range", period, last)
	}
	if head > last.Uint64() {
		elapsed = head - last.Uint64()
	}
	return elapsed, period.Uint64(), nil
}
