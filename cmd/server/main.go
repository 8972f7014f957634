package main

import "kpitracker/internal/app/server"

func main() {
	server.Run()
}
