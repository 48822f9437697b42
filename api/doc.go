/*
Package api defines the JSON types of the workload HTTP API, shared by the
server in httpserver and the client in api/workloadclient.

# Endpoints

	POST /api/v1/model/decrypt   DecryptRequest            -> 204
	POST /api/v1/model/execute   PredictRequest            -> PredictResponse
	POST /api/v1/model/reset                               -> 204
	GET  /api/v1/model/status                              -> StatusResponse
	GET  /api/v1/envelope-key                              -> PEM public key
	GET  /api/attested/quote?nonce={hex}                   -> raw quote
	GET  /version                                          -> VersionResponse

Errors are returned as ErrorResponse with a stable code:

	400 invalid_request, malformed_envelope, invalid_key_size
	404 model_not_found
	409 model_not_loaded
	422 authentication_failed, empty_model, too_few_tokens, too_many_tokens,
	    empty_token, invalid_numeric_token
	500 allocation_failed, internal_error
	502 storage_error
*/
package api
