//go:build swagger

package main

// Registers the document produced by `swag init` with swag.
import _ "modelhost/docs"
