// Package main is the entry point for the microjpeg usage service.
package main

func main() {
	Execute()
}
