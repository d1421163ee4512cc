package main

import (
	"github.com/dwarvesf/btc-forwarder/internal/server"
)

func main() {
	server.Init()
}
