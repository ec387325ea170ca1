package main

import (
	"log"

	"github.com/Prithvi164/LMSQMS-sub006/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
