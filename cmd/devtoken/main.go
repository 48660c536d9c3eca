// Command devtoken prints an access token for local testing against a
// server started with the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/auth"
	"github.com/iliyamo/cinema-booking-core/internal/config"
)

func main() {
	var (
		user = flag.String("user", "", "user id (random when empty)")
		role = flag.String("role", auth.RoleCustomer, "CUSTOMER or OWNER")
		ttl  = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	cfg := config.Load()
	userID := uuid.New()
	if *user != "" {
		id, err := uuid.Parse(*user)
		if err != nil {
			logrus.WithError(err).Fatal("invalid -user")
		}
		userID = id
	}
	tok, err := auth.NewAccessToken(cfg.JWTSecret, userID, *role, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("sign token")
	}
	fmt.Fprintf(os.Stderr, "user %s role %s expires %s\n", userID, *role, tok.Exp.Format(time.RFC3339))
	fmt.Println(tok.Token)
}
