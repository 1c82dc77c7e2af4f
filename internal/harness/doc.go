// Package harness runs monitoring scenarios against the real match engine
// and dispatcher, with launched commands recorded instead of executed.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: tank_range
//	description: "Leaving and re-entering the range dispatches each time"
//	config: |
//	  TANK:LEVEL 5.0 ~ 205.0 /usr/local/bin/tank_alarm
//	launch_exit: 0
//	events:
//	  - channel: TANK:LEVEL
//	    event: connect
//	  - channel: TANK:LEVEL
//	    event: update
//	    value: 3.0
//	expect:
//	  - status: reject
//	    command: "/usr/local/bin/tank_alarm TANK:LEVEL reject '3.000' 1"
//	assertions:
//	  - type: final_state
//	    channel: TANK:LEVEL
//	    state: unmatched
//
// Events use the same fields as replay script steps, without delays.
//
// # Deterministic Testing
//
// Every scenario runs with a fake clock, sequential dispatch IDs and a
// fresh in-memory history store. Each event is enqueued on a callback
// queue and fully processed before the next one, so traces are identical
// across runs and can be compared with golden files.
package harness
