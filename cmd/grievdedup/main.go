package main

import (
	"grievdedup/cmd/handlers"
	"grievdedup/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
