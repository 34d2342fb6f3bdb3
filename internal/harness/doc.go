// Package harness provides conformance testing for fold behavior.
//
// The harness compiles entity models, seeds a root state, runs cycles
// of mutations through sessions, and validates the resulting roots as
// executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	models: |
//	  models: {
//	      Book: fields: title: kind: "attribute"
//	  }
//	seed:
//	  Book:
//	    - { id: 1, title: "Dune" }
//	cycles:
//	  - name: retitle
//	    mutations:
//	      - op: update
//	        entity: Book
//	        ids: [1]
//	        patch: { title: "Dune I" }
//	assertions:
//	  - type: record
//	    entity: Book
//	    id: 1
//	    expect: { title: "Dune I" }
//
// Models may instead come from a CUE file via models_file. A cycle may
// declare expect_error to assert its fold is rejected; the root then
// carries over unchanged.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - ids: Verifies an entity's id list matches exactly, in order
//   - record: Verifies record fields match (subset semantics)
//   - count: Verifies an entity holds exactly N records
//   - absent: Verifies no record is stored under an id
//   - error: Verifies a recorded cycle error contains a substring
//
// # Deterministic Testing
//
// All scenarios execute with a shared logical clock and a constant
// session token source, so sequence numbers and reports reproduce
// exactly and golden snapshots stay byte-identical across runs.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/retitle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
