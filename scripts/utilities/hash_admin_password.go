//go:build ignore

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/promptvault/promptvault/internal/auth"
)

// Prints a bcrypt hash for the ADMIN_PASSWORD_HASH environment variable.
func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: go run hash_admin_password.go <password>")
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	fmt.Println(hash)
}
