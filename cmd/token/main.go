// Command token issues an operator session token signed with SESSION_SECRET.
// The console API accepts it as a Bearer token or as ?access_token= on /ws.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/commutewise/console/internal/config"
	"github.com/commutewise/console/internal/identity"
)

func main() {
	subject := flag.String("subject", "", "operator ID to put in the token (required)")
	email := flag.String("email", "", "operator email")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "token: -subject is required")
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sessions, err := identity.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	token, id, err := sessions.Issue(*subject, *email)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", id.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Println(token)
}
