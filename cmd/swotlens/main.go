package main

import (
	"swotlens/cmd/handlers"
	"swotlens/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
