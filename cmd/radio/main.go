// Command radio is the onair broadcast core: it wires together the
// catalog, builder, playout engine, RTMP sink, and HTTP control surface
// into a single long-running process.
package main

func main() {
	Execute()
}
