// Package main (cmd/modelctl) is the operator CLI of the model workload.
//
// A typical provisioning flow:
//
//	modelctl keygen > swk.hex
//	modelctl seal --model model.txt --swk $(cat swk.hex) \
//	  --out-model model.enc --out-dek dek.enc
//	modelctl --workload-addr https://workload:8080 wrap-swk \
//	  --swk $(cat swk.hex) --verify-quote --out swk.enc
//	modelctl --workload-addr https://workload:8080 decrypt \
//	  --wrapped-model model.enc --wrapped-dek dek.enc --wrapped-swk swk.enc
//	echo '{"pregnancies":2,"glucose":140,...}' | modelctl predict
//
// With --storage on seal the wrapped artifacts are stored in the given
// backends and decrypt can reference them with --model-id and --dek-id.
package main
