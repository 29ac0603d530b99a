// Package artifact keeps files the agent produces for a remote front end.
//
// When the agent runs behind the websocket server there is no terminal to
// render code on, so code blocks found in final answers are saved here and
// served over HTTP instead. Artifacts are grouped by session and keep every
// saved version.
package artifact
