// Package common holds process-wide helpers shared by the workload binaries.
package common

// PackageName is the project name, used as the metrics namespace.
const PackageName = "tee-model-workload"

// Version is set at build time with -ldflags "-X github.com/ruteri/tee-model-workload/common.Version=..."
var Version = "dev"
