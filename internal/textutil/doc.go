// Package textutil sanitizes caller-supplied strings before they become path
// segments or log tokens.
package textutil
