// Package cliout formats mediajobd's own CLI subcommand output: a
// structured --json mode for scripts, and plain-English suggestions for the
// handful of operational errors an operator running this binary actually
// hits (missing codec tool, bad config, a busy listen port).
//
// Grounded on the teacher's pkg/util/json_output.go (JSONOutput envelope,
// PrintJSON/PrintJSONSuccess/PrintJSONError) and pkg/util/errors.go
// (WrapErrorWithSuggestion / GetErrorSuggestion), generalized from upload/
// IPFS-daemon diagnostics to this service's own failure modes.
package cliout

import (
	"encoding/json"
	"os"
)

// Envelope is the --json success/failure wrapper every subcommand emits.
type Envelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PrintJSON writes data as indented JSON to stdout.
func PrintJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Success writes an Envelope{Success: true, Data: data} to stdout.
func Success(data interface{}) error {
	return PrintJSON(Envelope{Success: true, Data: data})
}

// Failure writes an Envelope{Success: false, Error: err.Error()} to stdout.
func Failure(err error) error {
	return PrintJSON(Envelope{Success: false, Error: err.Error()})
}
