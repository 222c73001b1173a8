// Package harness runs progress-tracking scenarios described in YAML.
//
// A scenario seeds a stored progress document, then drives a tracker through
// mutations, clock advances, forced flushes and injected commit failures.
// The tracker and sync engine are wired exactly as a session wires them,
// with two substitutions:
//
//   - the debounce timer runs on a testutil.ManualScheduler, so "advance"
//     steps decide when flushes fire
//   - commits pass through a testutil.RecordingCommitter into an in-memory
//     docstore, so every batch is observable and failures can be queued
//
// Example:
//
//	name: counter-debounce
//	description: rapid counter edits produce one write
//	catalog:
//	  MISC:
//	    A: {xp: 1000}
//	steps:
//	  - counter: {kind: missions, value: 5}
//	  - counter: {kind: missions, value: 7}
//	  - advance: 2.5s
//	assertions:
//	  - type: batch_count
//	    count: 1
//	  - type: document
//	    expect: {missions: 7}
//
// Results can be compared against golden transcripts (see Transcript) that
// list every committed batch and the final document.
package harness
