// Package core provides the domain types shared by every chatagent package:
//
//   - Message (a single utterance in the rolling conversation)
//   - Directive (what the model asked for: a final answer or a tool action)
//   - Status (an outbound progress or result message of a turn)
//   - StepLimiter (an optional cap on model rounds per turn)
//
// The package is dependency free apart from identifier generation so that
// parsers, stores and front ends can share these types without import cycles.
package core
