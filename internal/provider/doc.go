// Package provider talks to hosted generation APIs.
//
// Every tool kind maps to one submission route. Long-running tools return a
// job id that callers poll through Check; short tools are submitted with
// "Prefer: wait" and return their result inline. The text tool is served by
// a langchaingo model instead of the job API.
//
// Nothing in this package retries. Callers decide whether a failure deserves
// another attempt.
package provider
