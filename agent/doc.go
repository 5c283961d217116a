// Package agent contains the tool calling chat agent that produces the
// content of a run. The package focuses on three concerns:
//
//  1. Driving a model turn by turn and mirroring its output into the run
//     (text, reasoning and tool call argument deltas)
//  2. Executing requested tools with bounded parallelism, per-call timeouts
//     and panic recovery, reporting each outcome on the tool call stream
//  3. Resolving instructions against the run state
//
// Execution Model:
//   - Run receives the run's *run.Controller and the conversation so far
//   - Every step records its number in the run state under StepsKey
//   - Tool errors become error results the model can react to; they do not
//     fail the run
//   - The run's cancellation signal ends the loop at the next step, or
//     immediately while waiting on the model
//
// Model specifics live in the model packages and tool plumbing in the tool
// package.
package agent
