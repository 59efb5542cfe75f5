/*
Package editor is the authoring side of an inquiry.

A Session wraps a graph in an undo/redo history, saves it in the background
once edits go quiet, gates publishing on structural validation and can ask the
reasoning service to repair a broken graph in one undoable step.
*/
package editor
