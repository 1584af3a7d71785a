// Package viz draws model state in the terminal.
//
//   - [Canvas]: braille dot canvas; [DrawMesh] plots a triangle mesh on it
//   - [InfoTable]: lipgloss summary of a model handle
//   - [LiveModel]: Bubble Tea view that advances a session step by step
//
// # Key Bindings
//
//	Space - Pause/Resume
//	Q     - Quit
package viz
