// Package cli implements the phr command-line client.
//
// Commands are built with cobra. Each invocation loads configuration,
// opens the local store and connects to the cloud backend, then runs one
// operation and exits. `phr watch` is the only long-running command.
//
//	phr records create --given Ann --family Lee
//	phr records add-entry <uuid> weight date=2025-01-02 weightKg=71.5
//	phr cloud enable <uuid>
//	phr share <uuid>
//	phr fetch
package cli
