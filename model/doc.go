// Package model defines the provider-agnostic contract between the agent loop
// and a language model backend, plus helpers shared by the vendor adapters.
//
// A backend turns an ordered list of role-tagged messages into text. The agent
// never retries a failed call; adapters wrap every failure in *ProviderError so
// callers can tell backend trouble apart from tool trouble with errors.As.
//
// Adapters live in sub-packages (openai, anthropic, gemini, gollm) and are made
// available by name through a Registry of factories populated at startup.
package model
