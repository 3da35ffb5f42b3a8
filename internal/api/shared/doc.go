// Package shared holds request decoding, validation, response writing and
// request-context helpers used by the api package and its middleware.
package shared
