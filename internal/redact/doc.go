// Package redact removes secrets from the diff and file contents before they
// leave the machine.
//
// Detection is regex based: Google API keys, AWS keys, provider tokens,
// JWTs, private key blocks, bearer tokens, credentialed database URLs and
// generic secret assignments. A [Redactor] additionally replaces the whole
// content of files whose paths match its glob patterns.
package redact
