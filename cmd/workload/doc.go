// Package main (cmd/workload) runs the model workload inside a TEE.
//
// The workload starts empty. A model provider wraps the model with a data
// encryption key, wraps that key with a session wrapping key, and submits
// the envelopes to /api/v1/model/decrypt. The decrypted model lives only in
// locked memory and is destroyed on reset or shutdown.
//
// The session wrapping key can be sealed to the workload envelope key, whose
// public half is bound to the TEE by the quote served at /api/attested/quote.
// Without --envelope-key-file the envelope key is generated at start-up and
// lost on restart.
//
// Example usage:
//
//	workload --listen-addr 0.0.0.0:8080 \
//	  --storage file:///var/lib/workload \
//	  --storage s3://models/prod?region=eu-west-1 \
//	  --attestation dcap --lock-memory
//
// Every flag can also be set through a WORKLOAD_ prefixed environment
// variable, e.g. WORKLOAD_LISTEN_ADDR.
package main
