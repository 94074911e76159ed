package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hydrate/internal/gas"
	"github.com/roach88/hydrate/internal/match"
	"github.com/roach88/hydrate/internal/review"
	"github.com/roach88/hydrate/internal/store"
	"github.com/roach88/hydrate/internal/testutil"
)

// Harness executes one scenario against its own store.
type Harness struct {
	store    *store.Store
	workflow *review.Workflow
	scanner  *review.Scanner
	engine   *match.Engine
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Create a fresh in-memory database with a deterministic clock
//  2. Seed the main table
//  3. Execute the flow, checking each step's expectation
//  4. Evaluate assertions
//
// The returned error reports a harness failure (seed or storage), not a
// failed expectation; those land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", store.WithClock(testutil.NewClock().Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := review.DefaultConfig()
	if scenario.Policy != "" {
		if cfg.ApprovalPolicy, err = review.ParsePolicy(scenario.Policy); err != nil {
			return nil, err
		}
	}

	h := &Harness{
		store: st,
		workflow: review.NewWorkflow(st, cfg,
			review.WithLogger(logger),
			review.WithBatchIDGenerator(testutil.NewFixedBatchGenerator(scenario.BatchID))),
		scanner: review.NewScanner(st, cfg, logger),
		engine:  match.NewEngine(st, match.DefaultConfig(), logger),
		logger:  logger,
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.seed(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to seed records: %w", err)
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, step)
		ev.Op = step.Op
		ev.Group = step.Group
		ev.Result = "ok"
		if err != nil {
			ev.Result = errorCode(err)
			ev.Detail = nil
		}
		result.AddTrace(ev)

		switch {
		case step.Expect == nil && err != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Op, err))
		case step.Expect != nil && err == nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got success", i, step.Op, step.Expect.Error))
		case step.Expect != nil && ev.Result != step.Expect.Error:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %v", i, step.Op, step.Expect.Error, err))
		}
		h.logger.Debug("flow step completed", "step", i, "op", step.Op, "result", ev.Result)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func errorCode(err error) string {
	if code := gas.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func (h *Harness) seed(ctx context.Context, scenario *Scenario, result *Result) error {
	recs := make([]gas.Record, len(scenario.Records))
	for i, row := range scenario.Records {
		rec, err := row.Record()
		if err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		recs[i] = rec
	}
	if len(recs) > 0 {
		if _, err := h.store.InsertRecords(ctx, recs); err != nil {
			return err
		}
	}
	result.AddTrace(TraceEvent{Op: "seed", Result: "ok", Detail: map[string]any{"records": len(recs)}})
	return nil
}

// execute runs one step. The returned event carries only Detail.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	var ev TraceEvent

	switch step.Op {
	case OpScan:
		groups, err := h.scanner.Scan(ctx)
		if err != nil {
			return ev, err
		}
		ev.Detail = map[string]any{"groups": len(groups)}

	case OpQuarantine:
		groups, err := h.scanner.Scan(ctx)
		if err != nil {
			return ev, err
		}
		report, err := h.workflow.MoveToReview(ctx, groups, "harness")
		ids := []string{}
		for _, g := range report.Groups {
			if g.Err == nil {
				ids = append(ids, g.GroupID)
			}
		}
		ev.Detail = map[string]any{"moved": report.Moved, "groups": ids}
		if err != nil {
			return ev, err
		}

	case OpApprove:
		winners, err := h.entriesByPressure(ctx, step.Group, step.Winners)
		if err != nil {
			return ev, err
		}
		out, err := h.workflow.Approve(ctx, step.Group, winners, "harness")
		if err != nil {
			return ev, err
		}
		ev.Detail = outcomeDetail(out)
		ev.Detail["survivors"] = len(out.Survivors)

	case OpReject:
		out, err := h.workflow.Reject(ctx, step.Group, "harness")
		if err != nil {
			return ev, err
		}
		ev.Detail = outcomeDetail(out)

	case OpRestore:
		out, err := h.workflow.Restore(ctx, step.Group)
		if err != nil {
			return ev, err
		}
		ev.Detail = outcomeDetail(out)
		ev.Detail["removed"] = len(out.Removed)

	case OpCorrect:
		ids, err := h.entriesByPressure(ctx, step.Group, []float64{step.From})
		if err != nil {
			return ev, err
		}
		entry, err := h.workflow.CorrectPressure(ctx, ids[0], step.To, "harness")
		if err != nil {
			return ev, err
		}
		ev.Detail = map[string]any{"pressure": entry.Pressure, "original_pressure": entry.OriginalPressure}

	case OpMatch:
		tol := step.Tolerance
		if tol == 0 {
			tol = match.DefaultConfig().Tolerance
		}
		results, err := h.engine.Match(ctx, match.Query{
			Composition: step.Composition,
			Temperature: step.Temperature,
			Tolerance:   tol,
		})
		if err != nil {
			return ev, err
		}
		ev.Detail = map[string]any{"results": len(results)}

	default:
		return ev, fmt.Errorf("unknown op %q", step.Op)
	}

	return ev, nil
}

func outcomeDetail(out review.Outcome) map[string]any {
	d := map[string]any{}
	if out.NoOp {
		d["no_op"] = true
	}
	return d
}

// entriesByPressure resolves pressures to the ids of a group's entries.
func (h *Harness) entriesByPressure(ctx context.Context, groupID string, pressures []float64) ([]int64, error) {
	if len(pressures) == 0 {
		return nil, nil
	}
	entries, err := h.store.GroupEntries(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(pressures))
	for _, p := range pressures {
		found := false
		for _, e := range entries {
			if e.Pressure == p {
				ids = append(ids, e.ID)
				found = true
				break
			}
		}
		if !found {
			return nil, &gas.Error{
				Code:    gas.ErrCodeNotFound,
				Message: fmt.Sprintf("no entry with pressure %g", p),
				GroupID: groupID,
			}
		}
	}
	return ids, nil
}
