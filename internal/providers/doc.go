// Package providers talks to the text-generation API.
//
// [Gemini] implements [Generator] over the Gemini REST API: a blocking
// generateContent call and a streamGenerateContent call decoded from
// server-sent events into an iter.Seq2 of text fragments. Requests are made
// once; there is no retry or back-off.
//
// Non-success statuses surface as [*APIError]; 401 and 403 are reported as
// authentication errors (see [IsAuthError]). A missing key is
// [ErrCredentialMissing].
//
// HTTP clients can be given a custom transport so that tests can redirect
// calls to local httptest servers.
package providers
