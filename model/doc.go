/*
Package model holds the decrypted classifier and the operations the workload
exposes on it.

A Manager owns at most one decrypted model buffer. The buffer lives in
memguard locked memory, is frozen read-only once loaded, and is destroyed on
Reset or when a newer model replaces it:

	Empty --Decrypt/Load--> Loaded --Reset--> Empty

The model is a text buffer of nine space-separated decimal numbers, eight
weights followed by a threshold:

	w0 w1 w2 w3 w4 w5 w6 w7 threshold

Parse is strict. Tokens are separated by exactly one space, a single trailing
line terminator is accepted and any other deviation is an error.

Predict normalizes the FeatureVector by Divisors, takes the dot product with
the weights and returns Positive only when it is strictly greater than the
threshold.

Errors are sentinels; Code maps them (and the envelope errors) to the stable
code strings used by the API.
*/
package model
