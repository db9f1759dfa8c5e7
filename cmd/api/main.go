package main

import (
	_ "github.com/joho/godotenv/autoload"
)

// @title Content Sync API
// @version 1.0
// @description Versioned content storage, optimistic updates and realtime presence for collaborative editing.
// @BasePath /
func main() {
	Execute()
}
