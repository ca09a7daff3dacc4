package main

import (
	"log"

	"libris/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Fatalln("Error:", err)
	}
}

func run() error {
	theApp, err := app.New()
	if err != nil {
		return err
	}
	defer theApp.Close()

	return theApp.Run()
}
