/*
Package ports defines the driven ports (interfaces) of the function runtime.

These interfaces decouple dispatching and state access from external
implementations, so the same handler runs against the remote state store,
Redis or memory.

# Key Interfaces

  - VersionedStore: Versioned key-value store with compare-and-swap writes.
  - LogUploader: Destination of the batched log records of an invocation.

RunVersionedStoreContract is the shared test suite every store must pass.
*/
package ports
