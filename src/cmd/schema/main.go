package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"staylog/src/db"

	"ariga.io/atlas-provider-gorm/gormschema"
)

// Prints the DDL for every model so atlas can diff it against migrations:
//
//	atlas migrate diff --env gorm
func main() {
	stmts, err := gormschema.New("postgres").Load(db.Models()...)
	if err != nil {
		log.Fatalf("failed to load gorm schema: %s\n", err.Error())
	}
	if _, err := io.WriteString(os.Stdout, stmts); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %s\n", err.Error())
		os.Exit(1)
	}
}
