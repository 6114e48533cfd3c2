// Package main is the command line front end of the tracker. It works
// directly on the local data files (login.csv, userdata.json, workouts.json).
package main

import (
	"os"
	"time"
)

var timeNow = time.Now

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
