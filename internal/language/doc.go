// Package language normalizes subtitle language codes and renders display
// names using golang.org/x/text.
package language
