// Package main starts the uploader command process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	uploadercmd "github.com/mansiachuthan/runboard/internal/cmd/uploader"
)

func main() {
	cfg, err := uploadercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[UPLOADER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := uploadercmd.Run(ctx, cfg); err != nil {
		log.Fatalf("upload failed: %v", err)
	}
}
