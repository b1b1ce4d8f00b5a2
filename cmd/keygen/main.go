package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const usage = `Usage:
  keygen admin                                   generate a server.admin_token value
  keygen token -secret S -user NAME [-ttl 1h]    mint an HS256 X-Access-Token for identity.mode: claims`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "admin":
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
			os.Exit(1)
		}
		token := hex.EncodeToString(buf)

		fmt.Printf("Admin token: %s\n", token)
		fmt.Println("\nAdd this to your config.yaml:")
		fmt.Printf("  server:\n")
		fmt.Printf("    admin_token: \"%s\"\n", token)

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		secret := fs.String("secret", "", "HMAC secret (identity.secret)")
		user := fs.String("user", "", "value of the username claim")
		subject := fs.String("sub", "", "value of the sub claim")
		ttl := fs.Duration("ttl", time.Hour, "token lifetime")
		_ = fs.Parse(os.Args[2:])

		if *secret == "" || (*user == "" && *subject == "") {
			fmt.Println(usage)
			os.Exit(1)
		}

		now := time.Now()
		claims := jwt.MapClaims{
			"iat": now.Unix(),
			"exp": now.Add(*ttl).Unix(),
		}
		if *user != "" {
			claims["username"] = *user
		}
		if *subject != "" {
			claims["sub"] = *subject
		}

		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(signed)

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}
