// Package harness runs review scenarios end to end.
//
// A scenario seeds a fresh in-memory store, drives the review workflow
// through a list of steps and then checks the final tables.
//
// # Scenario Format
//
//	name: approve_winner
//	description: "Two readings disagree; the reviewer keeps the lower one"
//	policy: single            # approval policy, default single
//	batch_id: batch-001       # fixed move-run id, default test-batch-default
//	records:
//	  - {temperature: 275, pressure: 2.5, composition: {CH4: 0.9, C2H6: 0.1}}
//	  - {temperature: 275, pressure: 3.1, composition: {CH4: 0.9, C2H6: 0.1}}
//	flow:
//	  - op: quarantine
//	  - op: approve
//	    group: G0001
//	    winners: [2.5]         # entries are named by pressure
//	  - op: reject
//	    group: G0001
//	    expect: {error: INVALID_STATE_TRANSITION}
//	assertions:
//	  - type: records
//	    temperature: 275
//	    composition: {CH4: 0.9, C2H6: 0.1}
//	    pressures: [2.5]
//	  - type: group_status
//	    group: G0001
//	    status: approved
//	  - type: totals
//	    records: 1
//
// # Steps
//
//   - scan: run the duplicate scanner, reporting the group count
//   - quarantine: scan and move every group to review
//   - approve, reject, restore: act on one group
//   - correct: change the pressure of the entry whose pressure is from
//   - match: run the match engine for composition and temperature
//
// A step without expect must succeed. A step with expect.error must fail
// with that error code.
//
// # Assertion Types
//
//   - records: main-table pressures for one composition and temperature
//   - group_status: the common status of a review group
//   - totals: row counts of both tables
//   - count: main-table records inside per-field [min, max] bounds
//
// # Deterministic Testing
//
// Every run uses a fresh store, a deterministic clock and a fixed batch id,
// so group ids, entry ids and traces are identical across runs. RunWithGolden
// compares the trace against testdata/golden/<name>.golden.
package harness
