// Package agent implements the ReAct turn loop.
//
// A turn records the user text in memory, then repeatedly prompts the model,
// parses its reply and either answers or runs a tool through the executor.
// Each tool result is appended to a per-turn trail (the model's action output
// followed by an "Observation:" message) that is sent with the next prompt
// but never stored in memory. Memory only keeps the user text and the final
// answer.
//
// Every turn emits zero or more non-final statuses (thoughts, heartbeats) and
// exactly one final status: an answer, or an error/timeout describing the
// failure with Failure metadata.
package agent
