package kindauth

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// SweepResult reports one sweep pass.
type SweepResult struct {
	Cutoff     time.Time
	Tokens     int64
	Challenges int64
}

// Sweep deletes blacklist entries for tokens that can no longer verify and
// challenges that expired before the same cutoff. Both deletions are
// idempotent.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	if e == nil || e.blacklist == nil || e.jwtManager == nil {
		return SweepResult{}, ErrEngineNotReady
	}

	res := SweepResult{Cutoff: e.now().Add(-e.jwtManager.MaxLifetime())}
	n, err := e.blacklist.Sweep(ctx, res.Cutoff)
	if err != nil {
		return res, err
	}
	res.Tokens = n

	if e.ledger != nil {
		m, err := e.ledger.Purge(ctx, res.Cutoff)
		if err != nil {
			return res, err
		}
		res.Challenges = m
	}

	e.metricInc(MetricBlacklistSwept)
	if e.logger != nil {
		e.logger.InfoContext(ctx, "kindauth: sweep complete",
			"cutoff", res.Cutoff,
			"tokens", res.Tokens,
			"challenges", res.Challenges,
		)
	}
	e.emitAuditToken(ctx, auditEventBlacklistSweep, true, "", "", "", nil, func() map[string]string {
		return map[string]string{
			"tokens":     strconv.FormatInt(res.Tokens, 10),
			"challenges": strconv.FormatInt(res.Challenges, 10),
		}
	})
	return res, nil
}

// StartSweeper runs Sweep every Config.Sweep.Interval in one background
// goroutine until ctx is cancelled or Close is called. Starting a second
// sweeper returns an error.
func (e *Engine) StartSweeper(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()
	if e.sweepDone != nil {
		return errors.New("sweeper already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.sweepCancel, e.sweepDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(e.config.Sweep.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.Sweep(ctx); err != nil && ctx.Err() == nil {
					e.warn("kindauth: sweep failed", "error", err)
				}
			}
		}
	}()
	return nil
}

func (e *Engine) stopSweeper() {
	e.sweepMu.Lock()
	cancel, done := e.sweepCancel, e.sweepDone
	e.sweepCancel, e.sweepDone = nil, nil
	e.sweepMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
