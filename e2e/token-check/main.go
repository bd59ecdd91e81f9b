package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <jwt-token> [server-addr]", os.Args[0])
	}

	jwtToken := os.Args[1]
	serverAddr := "http://localhost:8080"
	if len(os.Args) > 2 {
		serverAddr = os.Args[2]
	}

	req, err := http.NewRequest("GET", serverAddr+"/edge/auth/test", nil)
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+jwtToken)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode == http.StatusOK {
		fmt.Println("✅ Request ALLOWED")
		fmt.Println("\nTrust headers:")

		for k, v := range resp.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-") {
				fmt.Printf("  %s: %s\n", k, strings.Join(v, ", "))
			}
		}

		user := resp.Header.Get("x-validated-user")
		if user != "" {
			fmt.Printf("\n📋 Validated identity: %s (%s)\n",
				user, resp.Header.Get("x-validated-name"))
		}
	} else {
		fmt.Printf("❌ Request DENIED\n")
		fmt.Printf("Status: %d\n", resp.StatusCode)
		fmt.Printf("Validation: %s\n", resp.Header.Get("x-jwt-validation"))
		fmt.Printf("Body: %s\n", string(body))
	}
}
