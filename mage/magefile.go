//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	BINARY_NAME = "../bin/chatrelay"
	MAIN_PATH   = "../cmd/server"
	SMOKE_PATH  = "../scripts/ws_smoke"
	NATS_IMAGE  = "nats:2.10-alpine"
	NATS_NAME   = "chatrelay-nats"
)

// Build compiles the server binary.
func Build() error {
	fmt.Println("🔨 Building server binary...")
	return sh.RunV("go", "build", "-o", BINARY_NAME, MAIN_PATH)
}

// Test runs the unit tests with the race detector.
func Test() error {
	fmt.Println("🧪 Running tests...")
	return sh.RunV("go", "test", "-race", "-count=1", "../...")
}

// Bench runs the fan-out benchmarks.
func Bench() error {
	return sh.RunV("go", "test", "-run", "^$", "-bench", ".", "-benchmem", "../internal/core")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "../...")
}

// Run builds and starts the server with the default config.
func Run() error {
	mg.Deps(Build)
	return sh.RunV(BINARY_NAME)
}

// Smoke sends a short conversation to a running server.
func Smoke() error {
	fmt.Println("💨 Running WebSocket smoke test...")
	return sh.RunV("go", "run", SMOKE_PATH)
}

// NatsUp starts a JetStream-enabled NATS container for the message mirror.
func NatsUp() error {
	fmt.Println("🚀 Starting NATS container...")
	return sh.RunV("docker", "run", "-d", "--rm", "--name", NATS_NAME, "-p", "4222:4222", NATS_IMAGE, "-js")
}

// NatsDown stops the NATS container.
func NatsDown() error {
	fmt.Println("🛑 Stopping NATS container...")
	return sh.RunV("docker", "stop", NATS_NAME)
}

// Clean removes build output.
func Clean() {
	fmt.Println("🧹 Cleaning up...")
	os.Remove(BINARY_NAME)
}
