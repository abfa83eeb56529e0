/*
Package domain contains the core types of the function runtime.

It is kept free of I/O. Transports and stores translate to and from these
types.

# Key Entities

  - InvocationContext: The ids and endpoints the engine sends with every invocation.
  - Request: The parsed body of an invocation, including the previous state of a continuation.
  - Result: The outcome of a step (success, retry-with-state, transient or failed) and its response envelope.
  - Scope and Namespace: Where a state key lives (organization, project or environment).
  - Entry: A versioned value read from the state store.
*/
package domain
