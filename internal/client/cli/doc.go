// Package cli is the Nodea command-line client.
//
// Every command is a cobra subcommand of "nodea". Commands that touch
// records ask for the password once per process; "nodea shell" keeps the
// session open and reads further commands from stdin.
//
//	nodea register
//	nodea modules enable mood
//	nodea records add mood --data '{"date":"2024-05-01","mood_score":3}'
//	nodea export --out nodea.json
//	nodea backup push
package cli
