// Package main provides the entry point for the ringscan CLI.
//
// ringscan replays recorded AR pose traces through the two-ring capture
// guide and reports which viewing angles an object scan has covered.
//
// Usage:
//
//	ringscan replay <trace.yaml>...
//	ringscan history [trace-name]
//	ringscan quantize --anchor 0,0,0 --camera 0.5,0,0
//
// See --help for all available options.
package main

func main() {
	Execute()
}
