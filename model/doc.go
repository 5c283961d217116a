// Package model defines the provider‑agnostic abstractions for streaming
// language models used by the demo agent.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Surface text, reasoning and tool call fragments as deltas so callers can
//     forward them into a run as they arrive
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers remain decoupled from vendor SDKs.
package model
