// Command flightcal scrapes Google Flights calendar prices. It serves the
// HTTP API, runs one-off batches from the command line and doubles as the
// worker process the scheduler spawns for every scrape.
package main

func main() {
	execute()
}
