/*
Package ports defines the driven ports (interfaces) of the inquiry engine.

These interfaces decouple traversal and authoring from the collaborators that
store graphs, evaluate conditions, speak text and run integrations.

# Key Interfaces

  - Repository: loads and saves inquiry graphs and appends response records.
  - Reasoner: resolves condition nodes and generates dynamic text.
  - Narrator: fire-and-forget text-to-speech.
  - IntegrationRunner: executes the external tool behind an integration node.
  - Locker: coordinates session access across replicas.
*/
package ports
