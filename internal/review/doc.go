// Package review assembles a review of the staged changes and sends it to
// the model.
//
// [Prepare] collects the staged diff through a [DiffSource], gathers the
// project context, loads and redacts the changed files and renders the
// prompt with [BuildPrompt]. [Review] and [ReviewStream] send a prompt once.
// Their [Result] is tagged with an [Outcome]; an API failure is never
// represented as review text.
//
// [Run] and [RunStream] chain the two steps. An empty index short-circuits to
// [OutcomeNoChanges] before any request is made.
package review
