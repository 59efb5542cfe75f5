/*
Package domain contains the core models of an inquiry: the conversational graph and the
runtime state of a respondent walking it.

This package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Graph: an id-keyed node arena plus an ordered edge list. Cycles are allowed.
  - Node: a step in the conversation. Its payload (NodeData) is a closed set of variants,
    one per NodeType, interpreted with exhaustive type switches.
  - TraversalState: the snapshot of one respondent session (current node, append-only history).
  - DisplayEvent: content the traversal wants shown in the chat.
*/
package domain
