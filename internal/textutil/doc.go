// Package textutil turns client-supplied names into filesystem-safe tokens.
package textutil
