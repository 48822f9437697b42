// Package workloadclient is an HTTP client for the workload API described in
// package api. Non-2xx responses are returned as *Error carrying the API
// error code.
package workloadclient
