// Package review finds conflicting duplicate measurements and runs them
// through a quarantine workflow.
//
// Scanner groups records whose composition and temperature agree to a fixed
// resolution (gas.SignatureEpsilon, gas.TemperatureEpsilon) but whose
// pressures differ. Workflow moves such groups out of the main table into
// pending review and then approves, rejects or restores them:
//
//	        MoveToReview
//	main ───────────────▶ pending ──Approve──▶ approved
//	                        ▲  │                  │
//	                        │  └───Reject──▶ rejected
//	                        └──────Restore────────┘
//
// Every group operation runs in one transaction under a per-group lock;
// independent groups proceed concurrently.
package review
